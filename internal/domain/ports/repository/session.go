package repository

import (
	"context"

	"baking-ai-assistant/internal/domain/model"
)

// SessionRepository mediates all persisted per-session-key state.
//
// Load lazily creates a default-valued session; CreatedAt is persisted on
// that first write and never overwritten afterwards. SaveTurn persists one
// full exchange atomically: the session snapshot (recipe, step cursor,
// preferences, updated_at) together with the two new turns — a failed save
// must leave the stored session unchanged. Reset clears history, recipe and
// step cursor but keeps preferences and CreatedAt.
type SessionRepository interface {
	Load(ctx context.Context, key string) (*model.Session, error)
	SaveTurn(ctx context.Context, session *model.Session, userTurn, assistantTurn model.Turn) error
	SavePreferences(ctx context.Context, key string, prefs model.Preferences) error
	Reset(ctx context.Context, key string) error

	// Aggregates for the admin surface.
	CountSessions(ctx context.Context) (int, error)
	CountTurns(ctx context.Context) (int64, error)
}
