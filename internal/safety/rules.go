package safety

import (
	"regexp"

	"ai-nutritionist/internal/profile"
)

// Severity is the ordinal level of a warning.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Valid reports whether s is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityModerate, SeverityHigh:
		return true
	}
	return false
}

// Unsafe reports whether s marks a plan as unsafe.
func (s Severity) Unsafe() bool {
	return s == SeverityModerate || s == SeverityHigh
}

// Trigger flags an ingredient as contraindicated.
type Trigger struct {
	Term    string
	Pattern *regexp.Regexp
}

func trigger(term, pattern string) Trigger {
	return Trigger{Term: term, Pattern: regexp.MustCompile(`(?i)\b` + pattern + `\b`)}
}

// Rule is the deterministic check for one condition.
type Rule struct {
	Triggers    []Trigger
	Suggestions []string
	Severity    Severity
}

// Rules is the fixed rule table. Conditions without an entry are only
// checked by a Reviewer.
var Rules = map[profile.Condition]Rule{
	profile.Diabetes: {
		Triggers: []Trigger{
			trigger("sugar", `sugar`),
			trigger("honey", `honey`),
			trigger("jaggery", `jaggery`),
			trigger("syrup", `syrup`),
			trigger("molasses", `molasses`),
			trigger("sweetened", `sweetened`),
			trigger("condensed milk", `condensed\s+milk`),
			trigger("white rice", `white\s+rice`),
			trigger("white bread", `white\s+bread`),
			trigger("maida", `maida`),
			trigger("cornflakes", `cornflakes`),
			trigger("banana", `banana`),
			trigger("dates", `dates?`),
		},
		Suggestions: []string{
			"Use non-nutritive sweetener or omit added sugar",
			"Prefer brown rice or quinoa over white rice",
			"Choose whole-grain bread instead of white",
			"Swap sweetened dairy for unsweetened/low-sugar options",
		},
		Severity: SeverityModerate,
	},
	profile.Hypertension: {
		Triggers: []Trigger{
			trigger("salt", `salt`),
			trigger("soy sauce", `soy\s*sauce`),
			trigger("pickles", `pickles?`),
			trigger("processed meat", `processed\s+meat`),
			trigger("bacon", `bacon`),
			trigger("sausage", `sausage`),
			trigger("instant noodles", `instant\s+noodles?`),
			trigger("stock cube", `stock\s+cube`),
			trigger("bouillon", `bouillon`),
		},
		Suggestions: []string{
			"Reduce added salt; use herbs/spices",
			"Use low-sodium soy sauce/tamari",
			"Avoid processed meats",
		},
		Severity: SeverityModerate,
	},
	profile.KidneyDisease: {
		Triggers: []Trigger{
			trigger("bananas", `bananas?`),
			trigger("potatoes", `potato(es)?`),
			trigger("tomatoes", `tomato(es)?`),
			trigger("spinach", `spinach`),
			trigger("dairy", `dairy`),
			trigger("cheese", `cheese`),
			trigger("nuts", `nuts?`),
		},
		Suggestions: []string{
			"Limit high-potassium foods (check with your renal dietitian)",
			"Prefer rice/corn-based options; moderate dairy and nuts",
		},
		Severity: SeverityInfo,
	},
	profile.HeartDisease: {
		Triggers: []Trigger{
			trigger("fried", `fried`),
			trigger("butter", `butter`),
			trigger("ghee", `ghee`),
			trigger("cream", `cream`),
			trigger("palm oil", `palm\s+oil`),
			trigger("processed meat", `processed\s+meat`),
		},
		Suggestions: []string{
			"Use baking/grilling/steaming instead of frying",
			"Prefer olive/canola oil; limit butter/ghee",
			"Avoid processed meats",
		},
		Severity: SeverityModerate,
	},
}
