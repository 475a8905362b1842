package shopping

import "ai-nutritionist/internal/shared"

// Item is one ingredient to buy and the meals that use it.
type Item struct {
	Name  string        `json:"name"`
	Meals []shared.Slot `json:"meals"`
}

// List is the shopping list derived from one stored meal plan.
type List struct {
	PlanID        string `json:"plan_id"`
	PlanKind      string `json:"plan_kind"`
	PlanUpdatedMs int64  `json:"plan_updated_ms"`
	Items         []Item `json:"items"`
	CreatedMs     int64  `json:"ts_ms"`
}

// Names returns the item names in list order.
func (l *List) Names() []string {
	out := make([]string, len(l.Items))
	for i, it := range l.Items {
		out[i] = it.Name
	}
	return out
}
