package httpext

import (
	"encoding/json"
	"net/http"

	"github.com/deepgram/chatroom/pkg/logger"
)

// ErrorResponse is the JSON body of every error the bot server returns
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// JsonError writes a JSON error response with the specified status code
func JsonError(w http.ResponseWriter, message string, code int) {
	JsonErrorWithDetails(w, code, ErrorResponse{Error: message})
}

// JsonErrorWithDetails writes an error response carrying a description
func JsonErrorWithDetails(w http.ResponseWriter, code int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(logger.HANDLER, "Failed to encode error response: %v", err)
	}
}

// JsonResponse writes v as a JSON body with the given status code
func JsonResponse(w http.ResponseWriter, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to encode response: %v", err)
		JsonError(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logger.Warn(logger.HANDLER, "Failed to write response: %v", err)
	}
}

// Text writes a plain text body
func Text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Warn(logger.HANDLER, "Failed to write response: %v", err)
	}
}
