package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain"
	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/infra/metrics"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

type SessionStats struct {
	Sessions int   `json:"sessions"`
	Turns    int64 `json:"turns"`
}

type SessionUseCase interface {
	Get(ctx context.Context, sessionKey string) (*model.Session, error)
	UpdatePreferences(ctx context.Context, sessionKey string, patch model.PreferencesPatch) (model.Preferences, error)
	Reset(ctx context.Context, sessionKey string) error
	Stats(ctx context.Context) (SessionStats, error)
}

type sessionUC struct {
	sessions repository.SessionRepository
	locks    *KeyedLock
	log      *zerolog.Logger
}

func NewSessionUseCase(sessions repository.SessionRepository, locks *KeyedLock, logger *zerolog.Logger) *sessionUC {
	return &sessionUC{sessions: sessions, locks: locks, log: logger}
}

func (u *sessionUC) Get(ctx context.Context, sessionKey string) (*model.Session, error) {
	if sessionKey == "" {
		return nil, domain.ErrSessionKeyMissing
	}
	return u.sessions.Load(ctx, sessionKey)
}

func (u *sessionUC) UpdatePreferences(ctx context.Context, sessionKey string, patch model.PreferencesPatch) (model.Preferences, error) {
	if sessionKey == "" {
		return model.Preferences{}, domain.ErrSessionKeyMissing
	}

	unlock := u.locks.Lock(sessionKey)
	defer unlock()

	s, err := u.sessions.Load(ctx, sessionKey)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("load session: %w", err)
	}
	s.MergePreferences(patch)
	if err := u.sessions.SavePreferences(ctx, sessionKey, s.Preferences); err != nil {
		return model.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	metrics.IncSessionOp("save_prefs")
	return s.Preferences, nil
}

func (u *sessionUC) Reset(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return domain.ErrSessionKeyMissing
	}

	unlock := u.locks.Lock(sessionKey)
	defer unlock()

	if err := u.sessions.Reset(ctx, sessionKey); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	metrics.IncSessionOp("reset")
	u.log.Info().Str("session_key", sessionKey).Msg("session reset")
	return nil
}

func (u *sessionUC) Stats(ctx context.Context) (SessionStats, error) {
	n, err := u.sessions.CountSessions(ctx)
	if err != nil {
		return SessionStats{}, err
	}
	turns, err := u.sessions.CountTurns(ctx)
	if err != nil {
		return SessionStats{}, err
	}
	return SessionStats{Sessions: n, Turns: turns}, nil
}
