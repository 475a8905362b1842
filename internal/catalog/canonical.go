package catalog

import (
	"strings"
)

const (
	DietVeg    = "veg"
	DietVegan  = "vegan"
	DietNonVeg = "non-veg"

	BudgetLow    = "low"
	BudgetMedium = "medium"
	BudgetHigh   = "high"
)

var dietSynonyms = map[string]string{
	"veg":            DietVeg,
	"vegetarian":     DietVeg,
	"non-veg":        DietNonVeg,
	"non veg":        DietNonVeg,
	"nonvegetarian":  DietNonVeg,
	"non vegetarian": DietNonVeg,
	"omnivore":       DietNonVeg,
	"vegan":          DietVegan,
}

var budgetSynonyms = map[string]string{
	"low":        BudgetLow,
	"budget":     BudgetLow,
	"affordable": BudgetLow,
	"economical": BudgetLow,
	"cheap":      BudgetLow,
	"thrifty":    BudgetLow,
	"medium":     BudgetMedium,
	"moderate":   BudgetMedium,
	"standard":   BudgetMedium,
	"mid":        BudgetMedium,
	"mid range":  BudgetMedium,
	"midrange":   BudgetMedium,
	"average":    BudgetMedium,
	"avg":        BudgetMedium,
	"high":       BudgetHigh,
	"premium":    BudgetHigh,
	"luxury":     BudgetHigh,
	"expensive":  BudgetHigh,
	"gourmet":    BudgetHigh,
	"costly":     BudgetHigh,
}

// CanonicalDiet maps a free-text dietary preference to veg, vegan or
// non-veg. Unrecognized values are returned lower-cased and trimmed.
func CanonicalDiet(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if v, ok := dietSynonyms[key]; ok {
		return v
	}
	return key
}

// CanonicalBudget maps a free-text budget preference to low, medium or
// high. Hyphens and underscores count as spaces.
func CanonicalBudget(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	if v, ok := budgetSynonyms[key]; ok {
		return v
	}
	return key
}

func dietPhrase(canonical string) string {
	switch canonical {
	case DietVeg:
		return " that is vegetarian"
	case DietVegan:
		return " that is vegan"
	case DietNonVeg:
		return " that includes meat"
	}
	return ""
}

func budgetPhrase(canonical string) string {
	switch canonical {
	case "":
		return ""
	case BudgetLow:
		return " that is budget-friendly and affordable"
	case BudgetMedium:
		return " that balances cost and quality"
	case BudgetHigh:
		return " that uses premium ingredients"
	}
	return " that fits a " + canonical + " budget"
}
