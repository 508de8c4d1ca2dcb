package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deepgram/chatroom/internal/api/v1/middleware"
	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/internal/services"
)

// NewRouter builds the bot server's routes behind CORS.
func NewRouter(services *services.Services) http.Handler {
	router := mux.NewRouter()
	RegisterRoutes(router, services)
	return middleware.CORS(config.GetCORSOrigins())(router)
}

func RegisterRoutes(router *mux.Router, services *services.Services) {
	botService := services.GetBotService()
	m := services.GetMetrics()

	router.Use(middleware.RequestLogger)

	router.HandleFunc("/health", HandleHealth).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	router.Handle("/webhook", middleware.RateLimit("webhook")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebhook(botService, w, r)
	}))).Methods("POST")

	conversations := router.PathPrefix("/conversations/{cid}").Subrouter()
	conversations.Handle("/say", middleware.RateLimit("say")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleSay(botService, m, w, r)
	}))).Methods("GET")
	conversations.Handle("/log", middleware.RateLimit("log")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleLog(botService, m, w, r)
	}))).Methods("GET")
	conversations.HandleFunc("/tracker", func(w http.ResponseWriter, r *http.Request) {
		HandleTracker(botService, w, r)
	}).Methods("GET")
}
