// Package protocol extracts structured payloads (recipe definitions and
// step-progress updates) embedded in otherwise free-form assistant replies.
//
// The wire convention is a pair of sentinel-delimited regions whose interior
// is a single JSON object. Extraction is first-match and non-greedy, and the
// marked span is stripped from the visible text whether or not the interior
// decodes, so malformed structured data never leaks to the user.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"baking-ai-assistant/internal/domain"
	"baking-ai-assistant/internal/domain/model"
)

const (
	RecipeStartMarker = "%%%RECIPE_JSON%%%"
	RecipeEndMarker   = "%%%END_RECIPE%%%"
	StepStartMarker   = "%%%STEP_UPDATE%%%"
	StepEndMarker     = "%%%END_STEP%%%"
)

// Result is the outcome of parsing one raw assistant reply. RecipeErr and
// StepErr carry recoverable decode failures (wrapping domain.ErrProtocolParse);
// the caller logs them and proceeds with the absent payload.
type Result struct {
	CleanText  string
	Recipe     *model.Recipe
	StepUpdate *model.StepUpdate
	RecipeErr  error
	StepErr    error
}

// Parse extracts at most one recipe block and one step-update block from
// raw. Regions may appear in either order or not at all; a second occurrence
// of the same marker pair is left in the text untouched (first match wins).
func Parse(raw string) Result {
	res := Result{CleanText: raw}
	stripped := false

	if body, rest, ok := extract(res.CleanText, RecipeStartMarker, RecipeEndMarker); ok {
		res.CleanText = rest
		stripped = true
		r, err := decodeRecipe(body)
		if err != nil {
			res.RecipeErr = fmt.Errorf("recipe block: %w (%v)", domain.ErrProtocolParse, err)
		} else {
			res.Recipe = r
		}
	}

	if body, rest, ok := extract(res.CleanText, StepStartMarker, StepEndMarker); ok {
		res.CleanText = rest
		stripped = true
		u, err := decodeStepUpdate(body)
		if err != nil {
			res.StepErr = fmt.Errorf("step-update block: %w (%v)", domain.ErrProtocolParse, err)
		} else {
			res.StepUpdate = u
		}
	}

	// A reply with no marked regions passes through verbatim; trimming only
	// tidies the hole left by a stripped span.
	if stripped {
		res.CleanText = strings.TrimSpace(res.CleanText)
	}
	return res
}

// extract finds the first start marker and captures up to the NEAREST end
// marker after it. The whole span, markers included, is removed from the
// returned remainder. An unterminated region is not a match and the text is
// left as-is.
func extract(text, start, end string) (body, remainder string, ok bool) {
	i := strings.Index(text, start)
	if i < 0 {
		return "", text, false
	}
	after := text[i+len(start):]
	j := strings.Index(after, end)
	if j < 0 {
		return "", text, false
	}
	body = after[:j]
	remainder = text[:i] + after[j+len(end):]
	return body, remainder, true
}

func decodeRecipe(body string) (*model.Recipe, error) {
	var r model.Recipe
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &r); err != nil {
		return nil, err
	}
	// No partial recipes: a recipe without a title is discarded wholesale.
	// Missing array fields are tolerated as empty sequences.
	if r.Title == "" {
		return nil, fmt.Errorf("recipe missing title")
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
	if r.Tips == nil {
		r.Tips = []string{}
	}
	return &r, nil
}

func decodeStepUpdate(body string) (*model.StepUpdate, error) {
	// currentStep presence is what distinguishes a usable update; totalSteps
	// is advisory and passed through as decoded.
	var wire struct {
		CurrentStep *int `json:"currentStep"`
		TotalSteps  int  `json:"totalSteps"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &wire); err != nil {
		return nil, err
	}
	if wire.CurrentStep == nil {
		return nil, fmt.Errorf("step update missing currentStep")
	}
	if *wire.CurrentStep < 0 {
		return nil, fmt.Errorf("step update currentStep %d negative", *wire.CurrentStep)
	}
	return &model.StepUpdate{CurrentStep: *wire.CurrentStep, TotalSteps: wire.TotalSteps}, nil
}
