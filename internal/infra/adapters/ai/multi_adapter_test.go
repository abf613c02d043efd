package ai

import (
	"context"
	"errors"
	"testing"

	"baking-ai-assistant/internal/domain/ports/adapter"
)

type stubAI struct {
	name  string
	reply string
	err   error
	calls int
}

func (s *stubAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{s.name + "-model"}, nil
}

func (s *stubAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (s *stubAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (s *stubAI) Chat(ctx context.Context, model, systemPrompt string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newMulti(openai, gemini *stubAI) *MultiAIAdapter {
	return NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{
		"openai": openai,
		"gemini": gemini,
	}, []string{"openai", "gemini"})
}

func TestMultiRoutesByModelPrefix(t *testing.T) {
	oa := &stubAI{name: "openai", reply: "from openai"}
	ge := &stubAI{name: "gemini", reply: "from gemini"}
	m := newMulti(oa, ge)

	reply, err := m.Chat(context.Background(), "gemini-2.0-flash", "", []adapter.Message{{Role: "user", Content: "hi"}}, adapter.ChatOptions{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "from gemini" {
		t.Fatalf("reply = %q, want gemini's", reply)
	}
	if oa.calls != 0 {
		t.Fatalf("openai called %d times, want 0", oa.calls)
	}
}

func TestMultiFallsBackOnProviderError(t *testing.T) {
	oa := &stubAI{name: "openai", err: errors.New("boom")}
	ge := &stubAI{name: "gemini", reply: "from gemini"}
	m := newMulti(oa, ge)

	reply, err := m.Chat(context.Background(), "gpt-4o-mini", "", []adapter.Message{{Role: "user", Content: "hi"}}, adapter.ChatOptions{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "from gemini" {
		t.Fatalf("reply = %q, want fallback reply", reply)
	}
	if oa.calls != 1 || ge.calls != 1 {
		t.Fatalf("calls = openai %d, gemini %d, want 1 and 1", oa.calls, ge.calls)
	}
}

func TestMultiSurfacesLastErrorWhenAllFail(t *testing.T) {
	oa := &stubAI{name: "openai", err: errors.New("openai down")}
	ge := &stubAI{name: "gemini", err: errors.New("gemini down")}
	m := newMulti(oa, ge)

	_, err := m.Chat(context.Background(), "gpt-4o-mini", "", []adapter.Message{{Role: "user", Content: "hi"}}, adapter.ChatOptions{})
	if err == nil {
		t.Fatal("want error when every provider fails")
	}
	if err.Error() != "gemini down" {
		t.Fatalf("err = %v, want last provider's error", err)
	}
}

func TestMultiListModelsUnions(t *testing.T) {
	m := newMulti(&stubAI{name: "openai"}, &stubAI{name: "gemini"})
	models, err := m.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %v, want two entries", models)
	}
}
