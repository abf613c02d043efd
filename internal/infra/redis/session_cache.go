package redis

import (
	"context"
	"encoding/json"
	"time"

	"baking-ai-assistant/internal/domain/model"
)

// SessionCache keeps recent session snapshots in Redis so hot sessions skip
// the database read. Strictly a read accelerator: the database stays the
// source of truth and every write goes through it first.
type SessionCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionCache(client RedisClient, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func cacheKey(sessionKey string) string { return "baking_session:" + sessionKey }

func (c *SessionCache) Store(ctx context.Context, s *model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(s.Key), data, c.ttl)
}

func (c *SessionCache) Get(ctx context.Context, sessionKey string) (*model.Session, error) {
	data, err := c.client.Get(ctx, cacheKey(sessionKey))
	if err != nil {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionKey string) error {
	return c.client.Del(ctx, cacheKey(sessionKey))
}

func (c *SessionCache) Extend(ctx context.Context, sessionKey string) error {
	return c.client.Expire(ctx, cacheKey(sessionKey), c.ttl)
}
