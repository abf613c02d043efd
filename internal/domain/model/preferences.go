package model

// Preferences holds per-user baking preferences. The skill level and
// difficulty vocabularies are advisory, not enforced.
type Preferences struct {
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	SkillLevel          string   `json:"skillLevel"`
	FavoriteStyles      []string `json:"favoriteStyles"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DietaryRestrictions: []string{},
		SkillLevel:          "beginner",
		FavoriteStyles:      []string{},
	}
}

func (p Preferences) Clone() Preferences {
	cp := p
	cp.DietaryRestrictions = append([]string(nil), p.DietaryRestrictions...)
	cp.FavoriteStyles = append([]string(nil), p.FavoriteStyles...)
	return cp
}

// PreferencesPatch is a partial preferences update. Nil fields are left
// untouched; set fields overwrite wholesale (shallow last-write-wins, not a
// deep merge).
type PreferencesPatch struct {
	DietaryRestrictions *[]string `json:"dietaryRestrictions"`
	SkillLevel          *string   `json:"skillLevel"`
	FavoriteStyles      *[]string `json:"favoriteStyles"`
}

// Merge applies the patch to the session's preferences.
func (s *Session) MergePreferences(patch PreferencesPatch) {
	if patch.DietaryRestrictions != nil {
		s.Preferences.DietaryRestrictions = append([]string(nil), (*patch.DietaryRestrictions)...)
	}
	if patch.SkillLevel != nil {
		s.Preferences.SkillLevel = *patch.SkillLevel
	}
	if patch.FavoriteStyles != nil {
		s.Preferences.FavoriteStyles = append([]string(nil), (*patch.FavoriteStyles)...)
	}
}
