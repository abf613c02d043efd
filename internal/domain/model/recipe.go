package model

// Recipe is the structured baking recipe embedded in assistant replies.
// JSON keys match the wire protocol exactly.
type Recipe struct {
	Title       string   `json:"title"`
	Servings    string   `json:"servings"`
	PrepTime    string   `json:"prepTime"`
	BakeTime    string   `json:"bakeTime"`
	Difficulty  string   `json:"difficulty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Tips        []string `json:"tips"`
}

func (r Recipe) Clone() Recipe {
	cp := r
	cp.Ingredients = append([]string(nil), r.Ingredients...)
	cp.Steps = append([]string(nil), r.Steps...)
	cp.Tips = append([]string(nil), r.Tips...)
	return cp
}

// StepUpdate is the transient progress signal from a step-update block.
// Only its effect on the session's step cursor is ever persisted.
type StepUpdate struct {
	CurrentStep int `json:"currentStep"`
	TotalSteps  int `json:"totalSteps"`
}
