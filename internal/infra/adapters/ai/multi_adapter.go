package ai

import (
	"context"
	"errors"
	"strings"

	"baking-ai-assistant/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to a provider by model name and falls back
// to the remaining providers when the chosen one fails.
type MultiAIAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.AIServiceAdapter
	order           []string
}

// NewMultiAIAdapter does not inject a default model, only a default
// provider. Each provider adapter carries its own default model.
func NewMultiAIAdapter(defaultProvider string, byProvider map[string]adapter.AIServiceAdapter, order []string) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		order:           order,
	}
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

// candidates lists the resolved provider first, then the rest in registration
// order.
func (m *MultiAIAdapter) candidates(model string) []adapter.AIServiceAdapter {
	first := m.resolveProvider(model)
	out := make([]adapter.AIServiceAdapter, 0, len(m.order))
	if a := m.byProvider[first]; a != nil {
		out = append(out, a)
	}
	for _, name := range m.order {
		if name == first {
			continue
		}
		if a := m.byProvider[name]; a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (m *MultiAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, name := range m.order {
		a := m.byProvider[name]
		if a == nil {
			continue
		}
		list, _ := a.ListModels(ctx)
		for _, model := range list {
			if model == "" {
				continue
			}
			if _, ok := seen[model]; !ok {
				seen[model] = struct{}{}
				out = append(out, model)
			}
		}
	}
	return out, nil
}

func (m *MultiAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	for _, a := range m.candidates(model) {
		return a.GetModelInfo(model)
	}
	return adapter.ModelInfo{Name: model}, nil
}

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	for _, a := range m.candidates(model) {
		return a.CountTokens(ctx, model, messages)
	}
	return 0, nil
}

func (m *MultiAIAdapter) Chat(ctx context.Context, model, systemPrompt string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	var lastErr error
	for _, a := range m.candidates(model) {
		reply, err := a.Chat(ctx, model, systemPrompt, messages, opts)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no ai provider configured")
	}
	return "", lastErr
}
