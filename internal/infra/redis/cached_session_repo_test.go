package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/infra/memory"
	"baking-ai-assistant/internal/infra/worker"
)

// mapRedis is an in-process RedisClient for tests.
type mapRedis struct {
	data   map[string]string
	setErr error
}

func newMapRedis() *mapRedis { return &mapRedis{data: map[string]string{}} }

func (m *mapRedis) Ping(ctx context.Context) error { return nil }

func (m *mapRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *mapRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("nil")
	}
	return v, nil
}

func (m *mapRedis) Expire(ctx context.Context, key string, expiration time.Duration) error { return nil }

func (m *mapRedis) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapRedis) Close() error { return nil }

// The pool is deliberately never started: anything submitted to it will
// never run, so only synchronous cache writes can be observed.
func newCachedRepo(t *testing.T, rc RedisClient) (*CachedSessionRepo, *memory.SessionRepo) {
	t.Helper()
	logger := zerolog.Nop()
	backing := memory.NewSessionRepo()
	pool := worker.NewPool(1, &logger)
	return NewCachedSessionRepo(backing, NewSessionCache(rc, time.Hour), pool, &logger), backing
}

func turnPair(userText, assistantText string) (model.Turn, model.Turn) {
	now := time.Now()
	return model.Turn{ID: ulid.Make().String(), Role: model.RoleUser, Content: userText, Timestamp: now},
		model.Turn{ID: ulid.Make().String(), Role: model.RoleAssistant, Content: assistantText, Timestamp: now}
}

func TestSaveTurnVisibleOnNextCachedLoad(t *testing.T) {
	ctx := context.Background()
	repo, backing := newCachedRepo(t, newMapRedis())

	s, err := repo.Load(ctx, "kim")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u1, a1 := turnPair("sourdough please", "here you go")
	s.AppendTurn(u1)
	s.AppendTurn(a1)
	s.ApplyRecipe(&model.Recipe{Title: "Sourdough", Steps: []string{"Mix", "Bake"}})
	if err := repo.SaveTurn(ctx, s, u1, a1); err != nil {
		t.Fatalf("save turn: %v", err)
	}

	// The cache hit must already reflect the write.
	s2, err := repo.Load(ctx, "kim")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if s2.ActiveRecipe == nil || s2.ActiveRecipe.Title != "Sourdough" {
		t.Fatalf("cached load lost the recipe: %+v", s2.ActiveRecipe)
	}
	if len(s2.Turns) != 2 {
		t.Fatalf("cached load has %d turns, want 2", len(s2.Turns))
	}

	// A turn computed from that load must not clobber prior state in the
	// backing store.
	u2, a2 := turnPair("let's start", "mix your flour")
	s2.AppendTurn(u2)
	s2.AppendTurn(a2)
	if err := repo.SaveTurn(ctx, s2, u2, a2); err != nil {
		t.Fatalf("second save turn: %v", err)
	}
	stored, err := backing.Load(ctx, "kim")
	if err != nil {
		t.Fatalf("backing load: %v", err)
	}
	if stored.ActiveRecipe == nil || stored.ActiveRecipe.Title != "Sourdough" {
		t.Fatalf("backing store lost the recipe: %+v", stored.ActiveRecipe)
	}
	if len(stored.Turns) != 4 {
		t.Fatalf("backing store has %d turns, want 4", len(stored.Turns))
	}
}

func TestFailedCacheWriteInvalidatesInsteadOfGoingStale(t *testing.T) {
	ctx := context.Background()
	rc := newMapRedis()
	repo, _ := newCachedRepo(t, rc)

	s, err := repo.Load(ctx, "lee")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Snapshot writes start failing after the first load populated the cache.
	rc.setErr = errors.New("redis down")
	u1, a1 := turnPair("hello", "hi")
	s.AppendTurn(u1)
	s.AppendTurn(a1)
	if err := repo.SaveTurn(ctx, s, u1, a1); err != nil {
		t.Fatalf("save turn: %v", err)
	}
	if _, ok := rc.data[cacheKey("lee")]; ok {
		t.Fatal("stale snapshot left in cache after failed refresh")
	}

	// The next load falls through to the backing store and sees the write.
	s2, err := repo.Load(ctx, "lee")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(s2.Turns) != 2 {
		t.Fatalf("load after invalidation has %d turns, want 2", len(s2.Turns))
	}
}

func TestPreferenceWriteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	rc := newMapRedis()
	repo, _ := newCachedRepo(t, rc)

	if _, err := repo.Load(ctx, "pat"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := rc.data[cacheKey("pat")]; !ok {
		t.Fatal("load did not populate the cache")
	}
	prefs := model.DefaultPreferences()
	prefs.SkillLevel = "advanced"
	if err := repo.SavePreferences(ctx, "pat", prefs); err != nil {
		t.Fatalf("save preferences: %v", err)
	}
	if _, ok := rc.data[cacheKey("pat")]; ok {
		t.Fatal("stale snapshot survived a preference write")
	}
}
