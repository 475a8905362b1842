package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shared"
)

var (
	// ErrPlanNotFound is returned when no stored plan has the id.
	ErrPlanNotFound = errors.New("meal plan not found")
	// ErrInvalidPlan is returned for custom plans that cannot be stored.
	ErrInvalidPlan = errors.New("invalid meal plan")
)

// Kind says who wrote a plan.
type Kind string

const (
	KindAI     Kind = "ai"
	KindCustom Kind = "custom"
)

// ParseKind accepts "ai" and "custom", case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAI:
		return KindAI, true
	case KindCustom:
		return KindCustom, true
	}
	return "", false
}

func (k Kind) collection() string {
	if k == KindCustom {
		return "custom_meal_plans"
	}
	return "meal_suggestions"
}

// MealBlock is one meal slot of a plan.
type MealBlock struct {
	Recipe                      string           `json:"recipe"`
	IngredientsWithAlternatives []recipe.Mapping `json:"ingredients_with_alternatives"`
}

// NewMealBlock builds a block from resolved rows. Rows naming the same
// ingredient are collapsed and their alternatives merged.
func NewMealBlock(name string, rows []recipe.Mapping) *MealBlock {
	b := &MealBlock{Recipe: strings.TrimSpace(name), IngredientsWithAlternatives: rows}
	b.normalize()
	return b
}

func (b *MealBlock) normalize() {
	pos := make(map[string]int, len(b.IngredientsWithAlternatives))
	out := make([]recipe.Mapping, 0, len(b.IngredientsWithAlternatives))
	for _, m := range b.IngredientsWithAlternatives {
		ing := strings.TrimSpace(m.Ingredient)
		if ing == "" {
			continue
		}
		key := strings.ToLower(ing)
		if i, ok := pos[key]; ok {
			out[i].Alternatives = recipe.CleanAlternatives(out[i].Ingredient, append(out[i].Alternatives, m.Alternatives...))
			continue
		}
		pos[key] = len(out)
		out = append(out, recipe.Mapping{
			Ingredient:   ing,
			Alternatives: recipe.CleanAlternatives(ing, m.Alternatives),
		})
	}
	b.Recipe = strings.TrimSpace(b.Recipe)
	b.IngredientsWithAlternatives = out
}

// Ingredients returns the ingredient names in order.
func (b *MealBlock) Ingredients() []string {
	out := make([]string, 0, len(b.IngredientsWithAlternatives))
	for _, m := range b.IngredientsWithAlternatives {
		out = append(out, m.Ingredient)
	}
	return out
}

// MealPlan is a stored AI suggestion or custom plan.
type MealPlan struct {
	ID                string                     `json:"id,omitempty"`
	TimestampMs       int64                      `json:"ts_ms"`
	UpdatedMs         int64                      `json:"ts_ms_updated,omitempty"`
	Kind              Kind                       `json:"kind"`
	PredictedCalories *float64                   `json:"predicted_calories,omitempty"`
	Profile           *profile.Profile           `json:"profile,omitempty"`
	Note              *string                    `json:"note,omitempty"`
	PreferredRecipes  string                     `json:"preferred_recipes,omitempty"`
	Conditions        []string                   `json:"conditions,omitempty"`
	Meals             map[shared.Slot]*MealBlock `json:"meals"`
	Validation        safety.Result              `json:"validation"`
}

// SlotIngredients lists a slot's ingredient and alternative names.
func (p *MealPlan) SlotIngredients(slot shared.Slot) ([]string, bool) {
	b := p.Meals[slot]
	if b == nil {
		return nil, false
	}
	var out []string
	for _, m := range b.IngredientsWithAlternatives {
		out = append(out, m.Ingredient)
		out = append(out, m.Alternatives...)
	}
	return out, true
}

// ConditionList returns the conditions a plan is validated against.
func (p *MealPlan) ConditionList() []profile.Condition {
	return safety.ConditionsFor(p.Profile, p.Conditions)
}

// CanonicalMeals folds slot keys onto their canonical names. An unknown
// slot, or two keys naming the same slot, make the plan invalid.
func CanonicalMeals(meals map[shared.Slot]*MealBlock) (map[shared.Slot]*MealBlock, error) {
	keys := make([]string, 0, len(meals))
	for k := range meals {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	out := make(map[shared.Slot]*MealBlock, len(meals))
	given := make(map[shared.Slot]string, len(meals))
	for _, key := range keys {
		slot, ok := shared.ParseSlot(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown meal slot %q", ErrInvalidPlan, key)
		}
		if prev, dup := given[slot]; dup {
			return nil, fmt.Errorf("%w: meal slot %s given as both %q and %q", ErrInvalidPlan, slot, prev, key)
		}
		given[slot] = key
		out[slot] = meals[shared.Slot(key)]
	}
	return out, nil
}

// Normalize canonicalizes slot keys and block rows. A plan without any
// meal, or with an unknown or repeated slot, is invalid.
func (p *MealPlan) Normalize() error {
	canonical, err := CanonicalMeals(p.Meals)
	if err != nil {
		return err
	}
	meals := make(map[shared.Slot]*MealBlock, len(canonical))
	for slot, b := range canonical {
		if b == nil {
			continue
		}
		b.normalize()
		if b.Recipe == "" && len(b.IngredientsWithAlternatives) == 0 {
			continue
		}
		meals[slot] = b
	}
	if len(meals) == 0 {
		return fmt.Errorf("%w: at least one meal is required", ErrInvalidPlan)
	}
	p.Meals = meals
	return nil
}

// Patch holds the fields of a partial update. Nil fields are left as is;
// Meals replaces only the slots it names.
type Patch struct {
	PredictedCalories *float64                   `json:"predicted_calories,omitempty"`
	Profile           *profile.Profile           `json:"profile,omitempty"`
	Note              *string                    `json:"note,omitempty"`
	PreferredRecipes  *string                    `json:"preferred_recipes,omitempty"`
	Conditions        []string                   `json:"conditions,omitempty"`
	Meals             map[shared.Slot]*MealBlock `json:"meals,omitempty"`
}

func (p *MealPlan) apply(patch Patch) error {
	if patch.PredictedCalories != nil {
		p.PredictedCalories = patch.PredictedCalories
	}
	if patch.Profile != nil {
		p.Profile = patch.Profile
	}
	if patch.Note != nil {
		p.Note = patch.Note
	}
	if patch.PreferredRecipes != nil {
		p.PreferredRecipes = *patch.PreferredRecipes
	}
	if patch.Conditions != nil {
		p.Conditions = patch.Conditions
	}
	if len(patch.Meals) > 0 {
		if p.Meals == nil {
			p.Meals = map[shared.Slot]*MealBlock{}
		}
		meals, err := CanonicalMeals(patch.Meals)
		if err != nil {
			return err
		}
		for slot, b := range meals {
			p.Meals[slot] = b
		}
	}
	return p.Normalize()
}

// CustomPreference records a user's preferred recipe for a slot.
type CustomPreference struct {
	MealType             shared.Slot       `json:"meal_type"`
	PreferredRecipe      string            `json:"preferred_recipe"`
	Note                 string            `json:"note,omitempty"`
	SelectedAlternatives map[string]string `json:"selected_alternatives,omitempty"`
	PredictedCalories    *float64          `json:"predicted_calories,omitempty"`
	Profile              *profile.Profile  `json:"profile,omitempty"`
	TimestampMs          int64             `json:"ts_ms"`
}
