package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"baking-ai-assistant/internal/domain"
	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/adapter"
	"baking-ai-assistant/internal/domain/ports/repository"
	"baking-ai-assistant/internal/domain/prompt"
	"baking-ai-assistant/internal/domain/protocol"
	"baking-ai-assistant/internal/infra/logging"
	"baking-ai-assistant/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatResult is one completed chat exchange as returned to the transport
// layer. Recipe is the freshly parsed recipe when the reply carried one,
// else the session's active recipe (possibly nil).
type ChatResult struct {
	Reply            string
	Recipe           *model.Recipe
	StepUpdate       *model.StepUpdate
	CurrentStepIndex int
}

type ChatUseCase interface {
	SendMessage(ctx context.Context, sessionKey, message string) (*ChatResult, error)
}

// Locker guards a session key across instances (redis SETNX); nil means
// single-instance deployment where the in-process KeyedLock is sufficient.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type chatUC struct {
	sessions repository.SessionRepository
	ai       adapter.AIServiceAdapter
	builder  *prompt.Builder
	locks    *KeyedLock
	locker   Locker // optional
	model    string
	opts     adapter.ChatOptions
	log      *zerolog.Logger
}

func NewChatUseCase(
	sessions repository.SessionRepository,
	ai adapter.AIServiceAdapter,
	builder *prompt.Builder,
	locks *KeyedLock,
	locker Locker,
	modelName string,
	opts adapter.ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	return &chatUC{
		sessions: sessions,
		ai:       ai,
		builder:  builder,
		locks:    locks,
		locker:   locker,
		model:    modelName,
		opts:     opts,
		log:      logger,
	}
}

// SendMessage runs one full chat turn: load state, assemble the context
// window, await the model, parse structured payloads, apply transitions and
// persist the exchange atomically. The AI call is awaited before any
// mutation is computed, so a failed call leaves the session untouched.
func (c *chatUC) SendMessage(ctx context.Context, sessionKey, message string) (*ChatResult, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SendMessage")()

	if sessionKey == "" {
		return nil, domain.ErrSessionKeyMissing
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrInvalidArgument
	}

	unlock := c.locks.Lock(sessionKey)
	defer unlock()

	if c.locker != nil {
		token, err := c.locker.TryLock(ctx, "chat_lock:"+sessionKey, 30*time.Second)
		if err != nil {
			return nil, domain.ErrSessionBusy
		}
		defer func() { _ = c.locker.Unlock(ctx, "chat_lock:"+sessionKey, token) }()
	}

	s, err := c.sessions.Load(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	systemPrompt, messages := c.builder.Build(s, message)
	if n := c.builder.EstimateTokens(systemPrompt, messages); n > 0 {
		metrics.ObservePromptTokens(n)
		c.log.Debug().Int("prompt_tokens", n).Int("window", len(messages)).Msg("context window built")
	}

	start := time.Now()
	raw, err := c.ai.Chat(ctx, c.model, systemPrompt, messages, c.opts)
	metrics.ObserveAICall("default", c.model, int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		c.log.Error().Err(err).Str("model", c.model).Msg("ai inference failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	res := protocol.Parse(raw)
	if res.RecipeErr != nil {
		metrics.IncProtocolParseFailure("recipe")
		c.log.Warn().Err(res.RecipeErr).Msg("discarding undecodable recipe payload")
	}
	if res.StepErr != nil {
		metrics.IncProtocolParseFailure("step_update")
		c.log.Warn().Err(res.StepErr).Msg("discarding undecodable step-update payload")
	}

	// The assistant turn stores the raw reply, markers included, so the
	// model sees its own protocol output on later calls.
	now := time.Now()
	userTurn := model.Turn{ID: ulid.Make().String(), Role: model.RoleUser, Content: message, Timestamp: now}
	assistantTurn := model.Turn{ID: ulid.Make().String(), Role: model.RoleAssistant, Content: raw, Timestamp: now}

	s.AppendTurn(userTurn)
	s.AppendTurn(assistantTurn)
	if res.Recipe != nil {
		s.ApplyRecipe(res.Recipe)
	}
	if res.StepUpdate != nil {
		s.ApplyStepUpdate(res.StepUpdate)
	}

	if err := c.sessions.SaveTurn(ctx, s, userTurn, assistantTurn); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}
	metrics.AddTurnsAppended(2)

	out := &ChatResult{
		Reply:            res.CleanText,
		Recipe:           res.Recipe,
		StepUpdate:       res.StepUpdate,
		CurrentStepIndex: s.CurrentStepIndex,
	}
	if out.Recipe == nil {
		out.Recipe = s.ActiveRecipe
	}
	return out, nil
}
