// Package prompt assembles the bounded context window sent to the inference
// provider: the fixed behavior contract, the active-recipe restatement, the
// preference annotations and the most recent slice of history. The provider
// is stateless, so everything it must know is resent on every call in a
// fixed, deterministic order.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"baking-ai-assistant/internal/domain/model"
	"baking-ai-assistant/internal/domain/ports/adapter"
)

// DefaultHistoryWindow is the number of most recent turns resent per call.
const DefaultHistoryWindow = 20

// SystemPrompt is the fixed behavior contract for the assistant, including
// the output-protocol description. It must stay in sync with the markers in
// the protocol package.
const SystemPrompt = `You are a warm, knowledgeable AI baking assistant. Your personality is encouraging, patient, and passionate about baking.

CORE RESPONSIBILITIES:
1. Generate personalized baking recipes based on user preferences, dietary needs, skill level, and available ingredients.
2. Provide step-by-step baking guidance with clear, detailed instructions.
3. Answer baking questions (techniques, substitutions, troubleshooting).
4. Track which step the user is on and help them progress through the recipe.

RESPONSE FORMAT RULES:
- When generating a recipe, ALWAYS structure it with this JSON block at the END of your message (after your conversational text):
  %%%RECIPE_JSON%%%
  {
    "title": "Recipe Name",
    "servings": "X servings",
    "prepTime": "X min",
    "bakeTime": "X min",
    "difficulty": "Beginner|Intermediate|Advanced",
    "ingredients": ["1 cup flour", "2 eggs", ...],
    "steps": ["Step 1 text", "Step 2 text", ...],
    "tips": ["Tip 1", "Tip 2"]
  }
  %%%END_RECIPE%%%
- When the user asks to start baking or begin steps, respond conversationally about the first step and include:
  %%%STEP_UPDATE%%%{"currentStep": 0, "totalSteps": N}%%%END_STEP%%%
- When the user says "next", "done", "next step", etc., advance the step and explain the next one with a step update block.
- For general conversation/questions, just respond naturally without any JSON blocks.

PERSONALITY:
- Use encouraging language ("Great choice!", "You've got this!")
- Offer pro tips and explain the "why" behind techniques
- Be concise but thorough — bakers need precision
- If the user seems stuck, offer troubleshooting proactively`

type Builder struct {
	window int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewBuilder(historyWindow int) *Builder {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Builder{window: historyWindow}
}

// Build produces the system instruction and the ordered message list for
// one inference call. It never mutates the session and is safe to call
// repeatedly for the same input.
func (b *Builder) Build(s *model.Session, userMessage string) (string, []adapter.Message) {
	recent := s.RecentTurns(b.window)
	messages := make([]adapter.Message, 0, len(recent)+1)
	for _, t := range recent {
		messages = append(messages, adapter.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, adapter.Message{Role: string(model.RoleUser), Content: userMessage})

	var sb strings.Builder
	sb.WriteString(SystemPrompt)
	if s.ActiveRecipe != nil {
		recipeJSON, _ := json.Marshal(s.ActiveRecipe)
		fmt.Fprintf(&sb, "\n\nACTIVE RECIPE CONTEXT:\n%s", recipeJSON)
		fmt.Fprintf(&sb, "\nUser is currently on step %d of %d steps.",
			s.CurrentStepIndex+1, len(s.ActiveRecipe.Steps))
	}
	if len(s.Preferences.DietaryRestrictions) > 0 {
		fmt.Fprintf(&sb, "\nUser dietary restrictions: %s",
			strings.Join(s.Preferences.DietaryRestrictions, ", "))
	}
	fmt.Fprintf(&sb, "\nUser skill level: %s", s.Preferences.SkillLevel)

	return sb.String(), messages
}

// EstimateTokens counts cl100k_base tokens across the assembled window.
// Best-effort: an encoder failure reports zero rather than blocking a turn.
func (b *Builder) EstimateTokens(systemPrompt string, messages []adapter.Message) int {
	b.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			b.enc = enc
		}
	})
	if b.enc == nil {
		return 0
	}
	n := len(b.enc.Encode(systemPrompt, nil, nil))
	for _, m := range messages {
		n += len(b.enc.Encode(m.Content, nil, nil))
	}
	return n
}
