package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/deepgram/chatroom/internal/metrics"
	"github.com/deepgram/chatroom/internal/services/bot"
	"github.com/deepgram/chatroom/pkg/httpext"
	"github.com/deepgram/chatroom/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type sayParams struct {
	ConversationID string `validate:"required,max=128"`
	Message        string `validate:"max=4096"`
	Payload        string `validate:"max=1024"`
	DisplayName    string `validate:"max=128"`
	UUID           string `validate:"max=64"`
}

type webhookRequest struct {
	Sender  string `json:"sender" validate:"max=128"`
	Message string `json:"message" validate:"max=4096"`
}

// HandleHealth reports liveness in the plain form widgets check for.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpext.Text(w, http.StatusOK, "healthy")
}

// HandleSay accepts one widget message and runs the bot turn before
// answering, so the reply is in the transcript by the next log fetch.
func HandleSay(botService *bot.Service, m *metrics.Metrics, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := sayParams{
		ConversationID: mux.Vars(r)["cid"],
		Message:        q.Get("message"),
		Payload:        q.Get("payload"),
		DisplayName:    q.Get("display_name"),
		UUID:           q.Get("uuid"),
	}

	if err := validate.Struct(params); err != nil {
		logger.Warn(logger.HANDLER, "Rejected say request: %v", err)
		m.SayRequest("invalid")
		httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: describe(err),
		})
		return
	}

	err := botService.Say(r.Context(), bot.SayRequest{
		ConversationID: params.ConversationID,
		Message:        params.Message,
		Payload:        params.Payload,
		DisplayName:    params.DisplayName,
		UUID:           params.UUID,
	})
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to handle say for %s: %v", params.ConversationID, err)
		m.SayRequest("error")
		httpext.JsonError(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	m.SayRequest("ok")
	httpext.Text(w, http.StatusOK, "OK")
}

// HandleLog returns the full transcript of a conversation.
func HandleLog(botService *bot.Service, m *metrics.Metrics, w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]

	entries, err := botService.Transcript(r.Context(), cid)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to read transcript for %s: %v", cid, err)
		httpext.JsonError(w, "Failed to read transcript", http.StatusInternalServerError)
		return
	}

	m.LogRequest()
	httpext.JsonResponse(w, http.StatusOK, entries)
}

func HandleTracker(botService *bot.Service, w http.ResponseWriter, r *http.Request) {
	cid := mux.Vars(r)["cid"]

	tracker, err := botService.Tracker(r.Context(), cid)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to build tracker for %s: %v", cid, err)
		httpext.JsonError(w, "Could not access tracker", http.StatusBadRequest)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, tracker)
}

// HandleWebhook answers a message inline without writing the transcript.
func HandleWebhook(botService *bot.Service, w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error(logger.HANDLER, "Failed to decode webhook request: %v", err)
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(req); err != nil {
		httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: describe(err),
		})
		return
	}

	if req.Sender == "" {
		req.Sender = "default"
	}

	messages, err := botService.Webhook(r.Context(), req.Sender, req.Message)
	if err != nil {
		logger.Error(logger.HANDLER, "Failed to handle webhook for %s: %v", req.Sender, err)
		httpext.JsonError(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, messages)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
	return err.Error()
}
