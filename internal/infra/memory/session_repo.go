// Package memory provides the in-process session store used in dev mode and
// tests. Snapshots are cloned on the way in and out so callers never share
// slices with stored state.
package memory

import (
	"context"
	"sync"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/infra/metrics"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

type SessionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{store: make(map[string]*model.Session)}
}

func (r *SessionRepo) Load(ctx context.Context, key string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[key]
	if !ok {
		// Lazy create; CreatedAt is fixed here and survives resets.
		s = model.NewSession(key)
		r.store[key] = s
		metrics.IncSessionOp("load_create")
	} else {
		metrics.IncSessionOp("load")
	}
	return s.Clone(), nil
}

func (r *SessionRepo) SaveTurn(ctx context.Context, s *model.Session, userTurn, assistantTurn model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := s.Clone()
	if prev, ok := r.store[s.Key]; ok {
		// First write wins for createdAt.
		cp.CreatedAt = prev.CreatedAt
	}
	r.store[s.Key] = cp
	metrics.IncSessionOp("save_turn")
	return nil
}

func (r *SessionRepo) SavePreferences(ctx context.Context, key string, prefs model.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[key]
	if !ok {
		s = model.NewSession(key)
		r.store[key] = s
	}
	s.Preferences = prefs.Clone()
	return nil
}

func (r *SessionRepo) Reset(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.store[key]; ok {
		s.Clear()
	}
	return nil
}

func (r *SessionRepo) CountSessions(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store), nil
}

func (r *SessionRepo) CountTurns(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, s := range r.store {
		n += int64(len(s.Turns))
	}
	return n, nil
}
