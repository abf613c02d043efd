package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/usecase"
)

// StatsProvider is the slice of the session use case the admin surface
// needs.
type StatsProvider interface {
	Stats(ctx context.Context) (usecase.SessionStats, error)
}

// Server is the small admin surface: a login endpoint exchanging the shared
// secret for a JWT and an aggregate stats endpoint behind it.
type Server struct {
	sessions StatsProvider
	auth     *AuthManager
	secret   string
	log      *zerolog.Logger
}

func NewServer(sessions StatsProvider, auth *AuthManager, secret string, logger *zerolog.Logger) *Server {
	return &Server{sessions: sessions, auth: auth, secret: secret, log: logger}
}

// Mount attaches the admin routes under /admin.
func (s *Server) Mount(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.With(s.requireAdmin).Get("/stats", s.handleStats)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint admin token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sessions.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("collect stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Verify(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
