package model

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NoStep is the step index meaning "recipe loaded but not started"
// (or no recipe at all).
const NoStep = -1

// Turn is one role-tagged message in the conversation history.
// Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the aggregate root for one user's baking conversation.
// All persisted per-key state lives here: the ordered history, the active
// recipe with its step cursor, and the user's preferences.
type Session struct {
	Key              string      `json:"sessionKey"`
	Turns            []Turn      `json:"conversationHistory"`
	ActiveRecipe     *Recipe     `json:"activeRecipe,omitempty"`
	CurrentStepIndex int         `json:"currentStepIndex"`
	Preferences      Preferences `json:"preferences"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:              key,
		Turns:            make([]Turn, 0, 8),
		CurrentStepIndex: NoStep,
		Preferences:      DefaultPreferences(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *Session) AppendTurn(t Turn) {
	s.Turns = append(s.Turns, t)
	s.UpdatedAt = time.Now()
}

// RecentTurns returns the last n turns in chronological order. n <= 0 or a
// short history returns the whole slice.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// ApplyRecipe installs a newly parsed recipe. Loading a recipe always
// discards the previous one and resets step progress, even mid-walkthrough.
func (s *Session) ApplyRecipe(r *Recipe) {
	if r == nil {
		return
	}
	s.ActiveRecipe = r
	s.CurrentStepIndex = NoStep
	s.UpdatedAt = time.Now()
}

// ApplyStepUpdate moves the step cursor. The index is stored as reported by
// the upstream payload without range-checking against the recipe's step
// count; readers must tolerate an out-of-range cursor. Ignored when no
// recipe is active.
func (s *Session) ApplyStepUpdate(u *StepUpdate) {
	if u == nil || s.ActiveRecipe == nil {
		return
	}
	s.CurrentStepIndex = u.CurrentStep
	s.UpdatedAt = time.Now()
}

// Clear wipes history, recipe and step cursor in place. Preferences and
// CreatedAt survive a reset.
func (s *Session) Clear() {
	s.Turns = s.Turns[:0]
	s.ActiveRecipe = nil
	s.CurrentStepIndex = NoStep
	s.UpdatedAt = time.Now()
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing shared slices.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Turns = make([]Turn, len(s.Turns))
	copy(cp.Turns, s.Turns)
	if s.ActiveRecipe != nil {
		r := s.ActiveRecipe.Clone()
		cp.ActiveRecipe = &r
	}
	cp.Preferences = s.Preferences.Clone()
	return &cp
}
