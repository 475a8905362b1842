package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a profile is missing required fields.
var ErrMalformed = errors.New("malformed profile")

// Condition is a medical or fitness condition name. Known conditions have
// canonical spellings; explicit condition lists may carry others.
type Condition string

const (
	Acne          Condition = "Acne"
	Diabetes      Condition = "Diabetes"
	HeartDisease  Condition = "Heart Disease"
	Hypertension  Condition = "Hypertension"
	KidneyDisease Condition = "Kidney Disease"
	WeightGain    Condition = "Weight Gain"
	WeightLoss    Condition = "Weight Loss"
)

// KnownConditions lists the enumerated flags in their stable order.
var KnownConditions = []Condition{Acne, Diabetes, HeartDisease, Hypertension, KidneyDisease, WeightGain, WeightLoss}

func conditionKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", " ", "-", " ").Replace(s)
}

var conditionsByKey = func() map[string]Condition {
	m := make(map[string]Condition, len(KnownConditions))
	for _, c := range KnownConditions {
		m[conditionKey(string(c))] = c
	}
	return m
}()

// ParseCondition canonicalizes a known condition name. Unknown names are
// returned trimmed with ok=false.
func ParseCondition(s string) (Condition, bool) {
	if c, ok := conditionsByKey[conditionKey(s)]; ok {
		return c, true
	}
	return Condition(strings.TrimSpace(s)), false
}

// ConditionFlags is the set of conditions a profile declares.
type ConditionFlags map[Condition]bool

// UnmarshalJSON accepts numeric, boolean and string flag values. Keys are
// matched case-insensitively and must name a known condition.
func (f *ConditionFlags) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: conditions must be an object: %v", ErrMalformed, err)
	}
	out := make(ConditionFlags, len(raw))
	for key, val := range raw {
		c, ok := ParseCondition(key)
		if !ok {
			return fmt.Errorf("%w: unknown condition %q", ErrMalformed, key)
		}
		set, err := truthy(val)
		if err != nil {
			return fmt.Errorf("%w: condition %q: %v", ErrMalformed, key, err)
		}
		if set {
			out[c] = true
		}
	}
	*f = out
	return nil
}

// MarshalJSON writes set flags as 1 so stored snapshots stay compact.
func (f ConditionFlags) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(f))
	for c, set := range f {
		if set {
			out[string(c)] = 1
		}
	}
	return json.Marshal(out)
}

func truthy(val json.RawMessage) (bool, error) {
	var v interface{}
	if err := json.Unmarshal(val, &v); err != nil {
		return false, err
	}
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case float64:
		return x == 1, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "1":
			return true, nil
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported flag value %s", string(val))
	}
}

// Profile is a user's health and fitness profile for a single request.
type Profile struct {
	Age               int            `json:"age"`
	Gender            string         `json:"gender"`
	Height            float64        `json:"height"`
	Weight            int            `json:"weight"`
	ActivityLevel     string         `json:"activity_level"`
	DietaryPreference string         `json:"dietary_preference"`
	BudgetPreference  string         `json:"budget_preference"`
	Conditions        ConditionFlags `json:"conditions,omitempty"`
}

// UnmarshalJSON also accepts condition flags given as top-level profile
// fields, e.g. {"Diabetes": 1}. They are merged into Conditions.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type plain Profile
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		c, ok := ParseCondition(key)
		if !ok {
			continue
		}
		set, err := truthy(val)
		if err != nil {
			return fmt.Errorf("%w: condition %q: %v", ErrMalformed, key, err)
		}
		if !set {
			continue
		}
		if out.Conditions == nil {
			out.Conditions = ConditionFlags{}
		}
		out.Conditions[c] = true
	}
	*p = Profile(out)
	return nil
}

// Validate rejects profiles missing any required field.
func (p Profile) Validate() error {
	var missing []string
	if p.Age <= 0 {
		missing = append(missing, "age")
	}
	if strings.TrimSpace(p.Gender) == "" {
		missing = append(missing, "gender")
	}
	if p.Height <= 0 {
		missing = append(missing, "height")
	}
	if p.Weight <= 0 {
		missing = append(missing, "weight")
	}
	if strings.TrimSpace(p.ActivityLevel) == "" {
		missing = append(missing, "activity_level")
	}
	if strings.TrimSpace(p.DietaryPreference) == "" {
		missing = append(missing, "dietary_preference")
	}
	if strings.TrimSpace(p.BudgetPreference) == "" {
		missing = append(missing, "budget_preference")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return nil
}

// Has reports whether the condition flag is set.
func (p Profile) Has(c Condition) bool {
	return p.Conditions[c]
}

// ConditionList returns the set flags in KnownConditions order.
func (p Profile) ConditionList() []Condition {
	var out []Condition
	for _, c := range KnownConditions {
		if p.Conditions[c] {
			out = append(out, c)
		}
	}
	return out
}

// ParseConditions canonicalizes an explicit list, dropping blanks and
// duplicates while keeping the first-seen order.
func ParseConditions(names []string) []Condition {
	seen := make(map[Condition]bool, len(names))
	var out []Condition
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		c, _ := ParseCondition(n)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ParseKeyValues builds a profile from "key=value" tokens, as typed into
// chat commands. Condition flags are given as a comma list under
// "conditions".
func ParseKeyValues(tokens []string) (Profile, error) {
	var p Profile
	p.Conditions = ConditionFlags{}
	for _, tok := range tokens {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return p, fmt.Errorf("%w: expected key=value, got %q", ErrMalformed, tok)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "age":
			n, err := strconv.Atoi(val)
			if err != nil {
				return p, fmt.Errorf("%w: age: %v", ErrMalformed, err)
			}
			p.Age = n
		case "gender":
			p.Gender = val
		case "height":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return p, fmt.Errorf("%w: height: %v", ErrMalformed, err)
			}
			p.Height = n
		case "weight":
			n, err := strconv.Atoi(val)
			if err != nil {
				return p, fmt.Errorf("%w: weight: %v", ErrMalformed, err)
			}
			p.Weight = n
		case "activity", "activity_level":
			p.ActivityLevel = val
		case "diet", "dietary_preference":
			p.DietaryPreference = val
		case "budget", "budget_preference":
			p.BudgetPreference = val
		case "conditions":
			for _, name := range strings.Split(val, ",") {
				if strings.TrimSpace(name) == "" {
					continue
				}
				c, ok := ParseCondition(name)
				if !ok {
					return p, fmt.Errorf("%w: unknown condition %q", ErrMalformed, name)
				}
				p.Conditions[c] = true
			}
		default:
			return p, fmt.Errorf("%w: unknown field %q", ErrMalformed, key)
		}
	}
	return p, nil
}
