package calorie

import (
	"strings"

	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/profile"
)

// FeatureVector is the fixed-order numeric encoding of a profile.
type FeatureVector []float64

// FeatureNames documents the model input schema. Index i of a
// FeatureVector holds the feature named FeatureNames[i].
var FeatureNames = []string{
	"age",
	"height_cm",
	"weight_kg",
	"gender_male",
	"activity_sedentary",
	"activity_light",
	"activity_moderate",
	"activity_active",
	"activity_very_active",
	"diet_veg",
	"diet_vegan",
	"diet_non_veg",
	"diet_other",
	"budget_low",
	"budget_medium",
	"budget_high",
	"budget_other",
	"condition_acne",
	"condition_diabetes",
	"condition_heart_disease",
	"condition_hypertension",
	"condition_kidney_disease",
	"condition_weight_gain",
	"condition_weight_loss",
}

// Activity is a canonical activity level.
type Activity string

const (
	Sedentary  Activity = "sedentary"
	Light      Activity = "light"
	Moderate   Activity = "moderate"
	Active     Activity = "active"
	VeryActive Activity = "very_active"
)

var activities = []Activity{Sedentary, Light, Moderate, Active, VeryActive}

var activitySynonyms = map[string]Activity{
	"sedentary":         Sedentary,
	"none":              Sedentary,
	"inactive":          Sedentary,
	"light":             Light,
	"lightly active":    Light,
	"low":               Light,
	"moderate":          Moderate,
	"moderately active": Moderate,
	"medium":            Moderate,
	"active":            Active,
	"high":              Active,
	"very active":       VeryActive,
	"very_active":       VeryActive,
	"extra active":      VeryActive,
	"extremely active":  VeryActive,
}

// ParseActivity canonicalizes an activity level; unknown values map to Moderate.
func ParseActivity(s string) Activity {
	key := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "_", " "))), " ")
	if a, ok := activitySynonyms[key]; ok {
		return a
	}
	if a, ok := activitySynonyms[strings.ReplaceAll(key, " ", "_")]; ok {
		return a
	}
	return Moderate
}

// IsMale reports whether a free-text gender denotes male.
func IsMale(gender string) bool {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "man":
		return true
	}
	return false
}

// Features encodes a profile per FeatureNames.
func Features(p profile.Profile) FeatureVector {
	v := make(FeatureVector, len(FeatureNames))
	v[0] = float64(p.Age)
	v[1] = p.Height
	v[2] = float64(p.Weight)
	if IsMale(p.Gender) {
		v[3] = 1
	}

	act := ParseActivity(p.ActivityLevel)
	for i, a := range activities {
		if a == act {
			v[4+i] = 1
		}
	}

	switch catalog.CanonicalDiet(p.DietaryPreference) {
	case catalog.DietVeg:
		v[9] = 1
	case catalog.DietVegan:
		v[10] = 1
	case catalog.DietNonVeg:
		v[11] = 1
	default:
		v[12] = 1
	}

	switch catalog.CanonicalBudget(p.BudgetPreference) {
	case catalog.BudgetLow:
		v[13] = 1
	case catalog.BudgetMedium:
		v[14] = 1
	case catalog.BudgetHigh:
		v[15] = 1
	default:
		v[16] = 1
	}

	for i, c := range profile.KnownConditions {
		if p.Has(c) {
			v[17+i] = 1
		}
	}
	return v
}
