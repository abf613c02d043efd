package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"baking-ai-assistant/internal/domain"
	"baking-ai-assistant/internal/domain/model"
)

// sessionKey resolves the caller's key: header first, then query parameter,
// then cookie. An empty result is the caller's problem, not ours to fix.
func sessionKey(r *http.Request) string {
	if k := r.Header.Get("X-Session-Key"); k != "" {
		return k
	}
	if k := r.URL.Query().Get("session"); k != "" {
		return k
	}
	if c, err := r.Cookie("session_key"); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), sessionKey(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch model.PreferencesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	prefs, err := s.sessions.UpdatePreferences(r.Context(), sessionKey(r), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "preferences": prefs})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply            string            `json:"reply"`
	Recipe           *model.Recipe     `json:"recipe,omitempty"`
	StepUpdate       *model.StepUpdate `json:"stepUpdate,omitempty"`
	CurrentStepIndex int               `json:"currentStepIndex"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.chat.SendMessage(r.Context(), sessionKey(r), req.Message)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Reply:            res.Reply,
		Recipe:           res.Recipe,
		StepUpdate:       res.StepUpdate,
		CurrentStepIndex: res.CurrentStepIndex,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reset(r.Context(), sessionKey(r)); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionKeyMissing):
		writeError(w, http.StatusBadRequest, "session key required")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrSessionBusy):
		writeError(w, http.StatusConflict, "session is busy, try again")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "assistant is unavailable, try again shortly")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal error",
			"details": err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
