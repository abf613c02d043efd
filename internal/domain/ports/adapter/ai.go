package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ModelInfo describes a model.
type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// ChatOptions carries per-call inference parameters.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// AIServiceAdapter is the port for LLM chat. The system prompt is passed
// separately from the conversation because providers differ in how system
// instructions are wired.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(model string) (ModelInfo, error)

	// CountTokens must return prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Chat returns only the assistant text.
	Chat(ctx context.Context, model, systemPrompt string, messages []Message, opts ChatOptions) (string, error)
}
