package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-nutritionist/internal/calorie"
	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shared"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Matcher finds the catalog row closest to a calorie target.
type Matcher interface {
	BestMatch(ctx context.Context, targetCalories float64, dietary, budget string) catalog.Match
}

// Resolver maps a recipe name to its ingredient rows.
type Resolver interface {
	Resolve(ctx context.Context, name string) (recipe.Resolution, error)
}

// TierObserver is told which relaxation tier answered a catalog match.
type TierObserver interface {
	ObserveCatalogTier(tier int)
}

// Generated is a composed and stored plan.
type Generated struct {
	ID    string        `json:"id"`
	Plan  *MealPlan     `json:"plan"`
	Match catalog.Match `json:"-"`
}

// Composer builds AI meal plans from a profile.
type Composer struct {
	estimator calorie.Estimator
	catalog   Matcher
	resolver  Resolver
	validator *safety.Validator
	plans     *PlanRepository
	observer  TierObserver
	log       *zap.Logger
	now       func() time.Time
}

// NewComposer creates a new Composer. observer may be nil.
func NewComposer(
	estimator calorie.Estimator,
	matcher Matcher,
	resolver Resolver,
	validator *safety.Validator,
	plans *PlanRepository,
	observer TierObserver,
	log *zap.Logger,
) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{
		estimator: estimator,
		catalog:   matcher,
		resolver:  resolver,
		validator: validator,
		plans:     plans,
		observer:  observer,
		log:       log,
		now:       time.Now,
	}
}

// Compose estimates the calorie target, picks the closest catalog row,
// resolves every slot, validates the plan and stores it.
func (c *Composer) Compose(ctx context.Context, p profile.Profile) (Generated, error) {
	if err := p.Validate(); err != nil {
		return Generated{}, err
	}

	kcal := c.estimator.Estimate(calorie.Features(p))
	match := c.catalog.BestMatch(ctx, kcal, p.DietaryPreference, p.BudgetPreference)
	if c.observer != nil {
		c.observer.ObserveCatalogTier(int(match.Tier))
	}
	c.log.Info("catalog match",
		zap.Float64("calories", kcal),
		zap.Int("row", match.Row),
		zap.Int("tier", int(match.Tier)),
		zap.Float64("score", match.Score),
	)

	names := map[shared.Slot]string{
		shared.Breakfast: match.Entry.Breakfast,
		shared.Lunch:     match.Entry.Lunch,
		shared.Dinner:    match.Entry.Dinner,
		shared.Snack:     match.Entry.Snack,
	}
	blocks := make([]*MealBlock, len(shared.Slots))

	g, gctx := errgroup.WithContext(ctx)
	for i, slot := range shared.Slots {
		name := names[slot]
		g.Go(func() error {
			res, err := c.resolver.Resolve(gctx, name)
			if errors.Is(err, recipe.ErrRecipeNotFound) {
				c.log.Warn("no ingredients for recipe", zap.String("slot", string(slot)), zap.String("recipe", name))
				blocks[i] = NewMealBlock(name, nil)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to resolve %s %q: %w", slot, name, err)
			}
			blocks[i] = NewMealBlock(name, res.Mappings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Generated{}, err
	}

	snapshot := p
	plan := &MealPlan{
		TimestampMs:       c.now().UnixMilli(),
		Kind:              KindAI,
		PredictedCalories: &kcal,
		Profile:           &snapshot,
		Meals:             make(map[shared.Slot]*MealBlock, len(shared.Slots)),
	}
	for i, slot := range shared.Slots {
		plan.Meals[slot] = blocks[i]
	}
	plan.Validation = c.validator.Validate(ctx, plan, p.ConditionList())

	id, err := c.plans.Save(ctx, KindAI, plan)
	if err != nil {
		return Generated{}, err
	}
	return Generated{ID: id, Plan: plan, Match: match}, nil
}

// Service is the plan-facing surface shared by the HTTP API, the bot and
// the CLI.
type Service struct {
	*Composer
	Plans     *PlanRepository
	validator *safety.Validator
}

// NewService creates a new Service.
func NewService(composer *Composer, plans *PlanRepository, validator *safety.Validator) *Service {
	return &Service{Composer: composer, Plans: plans, validator: validator}
}

// Validate checks plan against explicit conditions, or against its profile
// flags when explicit is empty.
func (s *Service) Validate(ctx context.Context, plan *MealPlan, explicit []string) (safety.Result, error) {
	if err := plan.Normalize(); err != nil {
		return safety.Result{}, err
	}
	return s.validator.Validate(ctx, plan, safety.ConditionsFor(plan.Profile, explicit)), nil
}

// SubmitCustom validates a user-authored plan and stores it.
func (s *Service) SubmitCustom(ctx context.Context, plan *MealPlan, explicit []string) (string, error) {
	if len(explicit) > 0 {
		plan.Conditions = explicit
	}
	res, err := s.Validate(ctx, plan, plan.Conditions)
	if err != nil {
		return "", err
	}
	plan.Validation = res
	plan.TimestampMs = 0
	plan.UpdatedMs = 0
	return s.Plans.Save(ctx, KindCustom, plan)
}
