package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/adapter"
)

// memSessionRepo is a small in-memory implementation used by unit tests.
// It hands out clones so tests catch accidental shared-state mutation.
type memSessionRepo struct {
	mu      sync.Mutex
	store   map[string]*model.Session
	saveErr error // used by tests to simulate persistence failures
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Load(ctx context.Context, key string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[key]
	if !ok {
		s = model.NewSession(key)
		m.store[key] = s
	}
	return s.Clone(), nil
}

func (m *memSessionRepo) SaveTurn(ctx context.Context, s *model.Session, userTurn, assistantTurn model.Turn) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.Key] = s.Clone()
	return nil
}

func (m *memSessionRepo) SavePreferences(ctx context.Context, key string, prefs model.Preferences) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[key]
	if !ok {
		s = model.NewSession(key)
		m.store[key] = s
	}
	s.Preferences = prefs.Clone()
	return nil
}

func (m *memSessionRepo) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[key]; ok {
		s.Clear()
	}
	return nil
}

func (m *memSessionRepo) CountSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store), nil
}

func (m *memSessionRepo) CountTurns(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		n += int64(len(s.Turns))
	}
	return n, nil
}

// fakeAI returns a scripted reply (or error) and records the last call.
type fakeAI struct {
	reply string
	err   error

	lastSystem   string
	lastMessages []adapter.Message
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (f *fakeAI) Chat(ctx context.Context, model, systemPrompt string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	f.lastSystem = systemPrompt
	f.lastMessages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }
