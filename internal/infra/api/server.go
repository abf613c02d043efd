package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/usecase"
)

// Server exposes the chat API over HTTP. Every session route resolves the
// caller's session key before touching state; the server never invents keys.
type Server struct {
	chat     usecase.ChatUseCase
	sessions usecase.SessionUseCase
	log      *zerolog.Logger
	timeout  time.Duration
}

func NewServer(chat usecase.ChatUseCase, sessions usecase.SessionUseCase, logger *zerolog.Logger, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Server{chat: chat, sessions: sessions, log: logger, timeout: requestTimeout}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log), TraceID(), RequestLog(s.log), Timeout(s.timeout))

	r.Get("/session", s.handleGetSession)
	r.Post("/preferences", s.handleUpdatePreferences)
	r.Post("/chat", s.handleChat)
	r.Post("/reset", s.handleReset)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}
