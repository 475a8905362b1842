package shopping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/store"
)

// Build derives a list from plan. Ingredients are merged case-insensitively
// and listed in the order they first appear, breakfast to snack.
func Build(plan *planner.MealPlan) List {
	list := List{
		PlanID:        plan.ID,
		PlanKind:      string(plan.Kind),
		PlanUpdatedMs: plan.UpdatedMs,
		Items:         []Item{},
	}
	pos := make(map[string]int)
	for _, slot := range shared.Slots {
		block := plan.Meals[slot]
		if block == nil {
			continue
		}
		for _, name := range block.Ingredients() {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" {
				continue
			}
			if i, ok := pos[key]; ok {
				if meals := list.Items[i].Meals; meals[len(meals)-1] != slot {
					list.Items[i].Meals = append(meals, slot)
				}
				continue
			}
			pos[key] = len(list.Items)
			list.Items = append(list.Items, Item{Name: strings.TrimSpace(name), Meals: []shared.Slot{slot}})
		}
	}
	return list
}

// Repository keeps shopping lists at shopping_lists/<kind>_<plan id>.
type Repository struct {
	store store.Store
	now   func() time.Time
}

// NewRepository creates a new shopping list repository.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s, now: time.Now}
}

func listPath(kind planner.Kind, planID string) string {
	return "shopping_lists/" + string(kind) + "_" + planID
}

// ForPlan returns the stored list for plan, rebuilding it when the plan has
// been edited since the list was made.
func (r *Repository) ForPlan(ctx context.Context, plan *planner.MealPlan) (*List, error) {
	path := listPath(plan.Kind, plan.ID)
	raw, err := r.store.GetNode(ctx, path)
	switch {
	case err == nil:
		var list List
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to decode shopping list %s: %w", plan.ID, err)
		}
		if list.PlanUpdatedMs == plan.UpdatedMs {
			return &list, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to get shopping list: %w", err)
	}

	list := Build(plan)
	list.CreatedMs = r.now().UnixMilli()
	if err := r.store.Set(ctx, path, list); err != nil {
		return nil, fmt.Errorf("failed to save shopping list: %w", err)
	}
	return &list, nil
}

// Delete removes the list of a deleted plan. A missing list is not an error.
func (r *Repository) Delete(ctx context.Context, kind planner.Kind, planID string) error {
	err := r.store.Remove(ctx, listPath(kind, planID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete shopping list: %w", err)
	}
	return nil
}
