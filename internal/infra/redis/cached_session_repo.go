package redis

import (
	"context"

	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/infra/metrics"
	"baking-ai-assistant/internal/infra/worker"
)

var _ repository.SessionRepository = (*CachedSessionRepo)(nil)

// CachedSessionRepo layers the session cache over a backing repository.
// Reads try the cache first. Cache hits are served authoritatively, so every
// snapshot write happens synchronously inside the caller's per-key lock
// window; only the idempotent TTL extension goes through the worker pool.
// A snapshot write that fails falls back to invalidation so a successful
// store write is never shadowed by a stale cache entry.
type CachedSessionRepo struct {
	inner repository.SessionRepository
	cache *SessionCache
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewCachedSessionRepo(inner repository.SessionRepository, cache *SessionCache, pool *worker.Pool, logger *zerolog.Logger) *CachedSessionRepo {
	return &CachedSessionRepo{inner: inner, cache: cache, pool: pool, log: logger}
}

func (r *CachedSessionRepo) Load(ctx context.Context, key string) (*model.Session, error) {
	if s, err := r.cache.Get(ctx, key); err == nil && s != nil {
		metrics.IncCacheRequest("session", "hit")
		r.refreshAsync(func(ctx context.Context) error { return r.cache.Extend(ctx, key) })
		return s, nil
	}
	metrics.IncCacheRequest("session", "miss")

	s, err := r.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	r.storeOrInvalidate(ctx, s)
	return s, nil
}

func (r *CachedSessionRepo) SaveTurn(ctx context.Context, s *model.Session, userTurn, assistantTurn model.Turn) error {
	if err := r.inner.SaveTurn(ctx, s, userTurn, assistantTurn); err != nil {
		return err
	}
	r.storeOrInvalidate(ctx, s)
	return nil
}

func (r *CachedSessionRepo) SavePreferences(ctx context.Context, key string, prefs model.Preferences) error {
	if err := r.inner.SavePreferences(ctx, key, prefs); err != nil {
		return err
	}
	// The cached snapshot is stale now. Drop it and let the next read rebuild.
	if err := r.cache.Delete(ctx, key); err != nil {
		r.log.Warn().Str("session_key", key).Err(err).Msg("cache invalidation failed")
	}
	return nil
}

func (r *CachedSessionRepo) Reset(ctx context.Context, key string) error {
	if err := r.inner.Reset(ctx, key); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, key); err != nil {
		r.log.Warn().Str("session_key", key).Err(err).Msg("cache invalidation failed")
	}
	return nil
}

func (r *CachedSessionRepo) CountSessions(ctx context.Context) (int, error) {
	return r.inner.CountSessions(ctx)
}

func (r *CachedSessionRepo) CountTurns(ctx context.Context) (int64, error) {
	return r.inner.CountTurns(ctx)
}

func (r *CachedSessionRepo) storeOrInvalidate(ctx context.Context, s *model.Session) {
	if err := r.cache.Store(ctx, s); err == nil {
		return
	}
	if err := r.cache.Delete(ctx, s.Key); err != nil {
		r.log.Warn().Str("session_key", s.Key).Err(err).Msg("cache invalidation failed")
	}
}

func (r *CachedSessionRepo) refreshAsync(task worker.Task) {
	if r.pool == nil {
		return
	}
	if err := r.pool.Submit(task); err != nil {
		r.log.Debug().Err(err).Msg("cache refresh dropped")
	}
}
