package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/store"

	"go.uber.org/zap"
)

// DefaultListLimit is used when List is called without a limit.
const DefaultListLimit = 20

const preferencesCollection = "custom_preferences"

// PlanRepository keeps AI suggestions and custom plans in a Store.
type PlanRepository struct {
	store     store.Store
	validator *safety.Validator
	log       *zap.Logger
	now       func() time.Time
}

// NewPlanRepository creates a new PlanRepository. validator re-checks plans
// on Update and may be nil.
func NewPlanRepository(s store.Store, validator *safety.Validator, log *zap.Logger) *PlanRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanRepository{store: s, validator: validator, log: log, now: time.Now}
}

// Save appends plan and returns its id. The plan's timestamp is set when
// missing.
func (r *PlanRepository) Save(ctx context.Context, kind Kind, plan *MealPlan) (string, error) {
	plan.Kind = kind
	if plan.TimestampMs == 0 {
		plan.TimestampMs = r.now().UnixMilli()
	}
	plan.ID = ""
	id, err := r.store.Push(ctx, kind.collection(), plan)
	if err != nil {
		return "", fmt.Errorf("failed to save %s plan: %w", kind, err)
	}
	plan.ID = id
	return id, nil
}

// Get returns one plan.
func (r *PlanRepository) Get(ctx context.Context, kind Kind, id string) (*MealPlan, error) {
	raw, err := r.store.GetNode(ctx, kind.collection()+"/"+id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return nil, fmt.Errorf("%s plan %q: %w", kind, id, ErrPlanNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodePlan(id, raw)
}

func decodePlan(id string, raw json.RawMessage) (*MealPlan, error) {
	var p MealPlan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", id, err)
	}
	p.ID = id
	return &p, nil
}

// List returns up to limit plans, newest first. When the store has no
// ts_ms index the whole collection is fetched and sorted here.
func (r *PlanRepository) List(ctx context.Context, kind Kind, limit int) ([]*MealPlan, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	collection := kind.collection()

	nodes, err := r.store.Get(ctx, collection, store.Query{OrderBy: "ts_ms", LimitToLast: limit})
	if errors.Is(err, store.ErrIndexMissing) {
		r.log.Warn("no ts_ms index, sorting in memory", zap.String("collection", collection))
		nodes, err = r.store.Get(ctx, collection, store.Query{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s plans: %w", kind, err)
	}

	plans := make([]*MealPlan, 0, len(nodes))
	for _, n := range nodes {
		p, err := decodePlan(n.ID, n.Data)
		if err != nil {
			r.log.Warn("skipping undecodable plan", zap.String("id", n.ID), zap.Error(err))
			continue
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].TimestampMs > plans[j].TimestampMs
	})
	if len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

// Latest returns the newest plan of kind.
func (r *PlanRepository) Latest(ctx context.Context, kind Kind) (*MealPlan, error) {
	plans, err := r.List(ctx, kind, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("no %s plans: %w", kind, ErrPlanNotFound)
	}
	return plans[0], nil
}

// Update merges patch into a stored plan, keeps its creation time, stamps
// ts_ms_updated and validates it again.
func (r *PlanRepository) Update(ctx context.Context, kind Kind, id string, patch Patch) (*MealPlan, error) {
	plan, err := r.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := plan.apply(patch); err != nil {
		return nil, err
	}
	plan.UpdatedMs = r.now().UnixMilli()
	if r.validator != nil {
		plan.Validation = r.validator.Validate(ctx, plan, plan.ConditionList())
	}

	fields, err := planFields(plan)
	if err != nil {
		return nil, err
	}
	if err := r.store.Update(ctx, kind.collection()+"/"+id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s plan %q: %w", kind, id, ErrPlanNotFound)
		}
		return nil, fmt.Errorf("failed to update %s plan: %w", kind, err)
	}
	return plan, nil
}

// planFields flattens plan into top-level fields for Store.Update.
func planFields(plan *MealPlan) (map[string]any, error) {
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// Delete removes a stored plan.
func (r *PlanRepository) Delete(ctx context.Context, kind Kind, id string) error {
	err := r.store.Remove(ctx, kind.collection()+"/"+id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return fmt.Errorf("%s plan %q: %w", kind, id, ErrPlanNotFound)
	}
	return err
}

// SavePreference appends a custom preference and returns its id.
func (r *PlanRepository) SavePreference(ctx context.Context, pref CustomPreference) (string, error) {
	slot, ok := shared.ParseSlot(string(pref.MealType))
	if !ok {
		return "", fmt.Errorf("%w: unknown meal type %q", ErrInvalidPlan, pref.MealType)
	}
	if pref.PreferredRecipe == "" {
		return "", fmt.Errorf("%w: preferred_recipe is required", ErrInvalidPlan)
	}
	pref.MealType = slot
	if pref.TimestampMs == 0 {
		pref.TimestampMs = r.now().UnixMilli()
	}
	id, err := r.store.Push(ctx, preferencesCollection, pref)
	if err != nil {
		return "", fmt.Errorf("failed to save preference: %w", err)
	}
	return id, nil
}
