package recipe

import (
	"errors"
	"strings"
)

// ErrRecipeNotFound is returned when no tier knows the recipe.
var ErrRecipeNotFound = errors.New("recipe not found")

// MaxAlternatives caps the alternatives kept per ingredient.
const MaxAlternatives = 3

// Mapping is one recipe→ingredient row with ranked alternatives.
type Mapping struct {
	Recipe       string   `json:"recipe,omitempty"`
	Ingredient   string   `json:"ingredient"`
	Alternatives []string `json:"alternatives"`
}

// Source names the tier that resolved a recipe.
type Source string

const (
	SourceStored    Source = "stored"
	SourceGenerated Source = "generated"
	SourceStatic    Source = "static"
	SourceImported  Source = "imported"
)

// Resolution is the result of resolving a recipe name.
type Resolution struct {
	Recipe   string    `json:"recipe"`
	Source   Source    `json:"source"`
	Mappings []Mapping `json:"ingredients_with_alternatives"`
}

// Ingredients returns the ingredient names in row order.
func (r Resolution) Ingredients() []string {
	out := make([]string, 0, len(r.Mappings))
	for _, m := range r.Mappings {
		out = append(out, m.Ingredient)
	}
	return out
}

// CleanAlternatives trims, drops blanks and self-references, removes
// case-insensitive duplicates keeping first occurrence, and caps at
// MaxAlternatives.
func CleanAlternatives(ingredient string, alts []string) []string {
	self := strings.ToLower(strings.TrimSpace(ingredient))
	seen := make(map[string]bool, len(alts))
	out := make([]string, 0, MaxAlternatives)
	for _, a := range alts {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || key == self || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if len(out) == MaxAlternatives {
			break
		}
	}
	return out
}

// clean returns a copy of m with trimmed fields and cleaned alternatives.
func (m Mapping) clean() Mapping {
	ing := strings.TrimSpace(m.Ingredient)
	return Mapping{
		Recipe:       strings.TrimSpace(m.Recipe),
		Ingredient:   ing,
		Alternatives: CleanAlternatives(ing, m.Alternatives),
	}
}

func recipeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
