package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/fitness"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/shopping"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"system": metrics.GetSysHealth(s.deps.DataPath),
	})
}

// ==================== Suggestions ====================

type suggestResponse struct {
	ID                          string                           `json:"id"`
	PredictedCalories           float64                          `json:"predicted_calories"`
	SuggestedMeals              map[shared.Slot]string           `json:"suggested_meals"`
	Ingredients                 map[shared.Slot][]string         `json:"ingredients"`
	IngredientsWithAlternatives map[shared.Slot][]recipe.Mapping `json:"ingredients_with_alternatives"`
	Validation                  safety.Result                    `json:"validation"`
	MatchTier                   catalog.Tier                     `json:"match_tier"`
}

func newSuggestResponse(g planner.Generated) suggestResponse {
	resp := suggestResponse{
		ID:                          g.ID,
		SuggestedMeals:              map[shared.Slot]string{},
		Ingredients:                 map[shared.Slot][]string{},
		IngredientsWithAlternatives: map[shared.Slot][]recipe.Mapping{},
		Validation:                  g.Plan.Validation,
		MatchTier:                   g.Match.Tier,
	}
	if g.Plan.PredictedCalories != nil {
		resp.PredictedCalories = *g.Plan.PredictedCalories
	}
	for slot, b := range g.Plan.Meals {
		resp.SuggestedMeals[slot] = b.Recipe
		resp.Ingredients[slot] = b.Ingredients()
		resp.IngredientsWithAlternatives[slot] = b.IngredientsWithAlternatives
	}
	return resp
}

func (s *Server) suggestMeal(c *gin.Context) {
	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	g, err := s.deps.Plans.Compose(c.Request.Context(), p)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSuggestResponse(g))
}

func (s *Server) getSuggestion(c *gin.Context) {
	plan, err := s.deps.Plans.Plans.Get(c.Request.Context(), planner.KindAI, c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ==================== Ingredients ====================

type recipeRequest struct {
	Recipe     string `json:"recipe" binding:"required"`
	Ingredient string `json:"ingredient"`
}

func (s *Server) getIngredients(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	res, err := s.deps.Recipes.Resolve(c.Request.Context(), req.Recipe)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipe":      strings.TrimSpace(req.Recipe),
		"ingredients": res.Ingredients(),
		"source":      res.Source,
	})
}

// getRecipeAlternatives returns every ingredient row of a recipe, or the
// alternatives of one ingredient when the request names it.
func (s *Server) getRecipeAlternatives(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	ctx := c.Request.Context()
	name := strings.TrimSpace(req.Recipe)

	if ing := strings.TrimSpace(req.Ingredient); ing != "" {
		alts, err := s.deps.Recipes.Alternatives(ctx, name, ing)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recipe": name, "ingredient": ing, "alternatives": alts})
		return
	}

	res, err := s.deps.Recipes.Resolve(ctx, name)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipe":                        name,
		"ingredients_with_alternatives": res.Mappings,
		"source":                        res.Source,
	})
}

// ==================== Custom plans ====================

// planRequest accepts meals either as top-level slot fields or under
// "meals".
type planRequest struct {
	Breakfast         *planner.MealBlock                 `json:"breakfast"`
	Lunch             *planner.MealBlock                 `json:"lunch"`
	Dinner            *planner.MealBlock                 `json:"dinner"`
	Snack             *planner.MealBlock                 `json:"snack"`
	Meals             map[shared.Slot]*planner.MealBlock `json:"meals"`
	PredictedCalories *float64                           `json:"predicted_calories"`
	Profile           *profile.Profile                   `json:"profile"`
	Note              *string                            `json:"note"`
	PreferredRecipes  *string                            `json:"preferred_recipes"`
	Conditions        []string                           `json:"conditions"`
}

// meals merges both shapes. Top-level slot fields win over "meals".
func (r planRequest) meals() (map[shared.Slot]*planner.MealBlock, error) {
	out, err := planner.CanonicalMeals(r.Meals)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		slot  shared.Slot
		block *planner.MealBlock
	}{
		{shared.Breakfast, r.Breakfast},
		{shared.Lunch, r.Lunch},
		{shared.Dinner, r.Dinner},
		{shared.Snack, r.Snack},
	} {
		if f.block != nil {
			out[f.slot] = f.block
		}
	}
	return out, nil
}

func (r planRequest) plan() (*planner.MealPlan, error) {
	meals, err := r.meals()
	if err != nil {
		return nil, err
	}
	p := &planner.MealPlan{
		PredictedCalories: r.PredictedCalories,
		Profile:           r.Profile,
		Note:              r.Note,
		Conditions:        r.Conditions,
		Meals:             meals,
	}
	if r.PreferredRecipes != nil {
		p.PreferredRecipes = *r.PreferredRecipes
	}
	return p, nil
}

func (r planRequest) patch() (planner.Patch, error) {
	meals, err := r.meals()
	if err != nil {
		return planner.Patch{}, err
	}
	return planner.Patch{
		PredictedCalories: r.PredictedCalories,
		Profile:           r.Profile,
		Note:              r.Note,
		PreferredRecipes:  r.PreferredRecipes,
		Conditions:        r.Conditions,
		Meals:             meals,
	}, nil
}

type validateRequest struct {
	Plan       planRequest `json:"plan"`
	Conditions []string    `json:"conditions"`
}

func (s *Server) validatePlan(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	plan, err := req.Plan.plan()
	if err != nil {
		abort(c, err)
		return
	}
	res, err := s.deps.Plans.Validate(c.Request.Context(), plan, req.Conditions)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) createCustomPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	plan, err := req.plan()
	if err != nil {
		abort(c, err)
		return
	}
	id, err := s.deps.Plans.SubmitCustom(c.Request.Context(), plan, req.Conditions)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id, "validation": plan.Validation})
}

func (s *Server) latestCustomPlan(c *gin.Context) {
	plan, err := s.deps.Plans.Plans.Latest(c.Request.Context(), planner.KindCustom)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) listCustomPlans(c *gin.Context) {
	limit := planner.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			abort(c, InvalidInput("limit must be a positive integer"))
			return
		}
		limit = n
	}
	plans, err := s.deps.Plans.Plans.List(c.Request.Context(), planner.KindCustom, limit)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": plans})
}

func (s *Server) getCustomPlan(c *gin.Context) {
	plan, err := s.deps.Plans.Plans.Get(c.Request.Context(), planner.KindCustom, c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) updateCustomPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	patch, err := req.patch()
	if err != nil {
		abort(c, err)
		return
	}
	plan, err := s.deps.Plans.Plans.Update(c.Request.Context(), planner.KindCustom, c.Param("id"), patch)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": plan.ID, "validation": plan.Validation})
}

func (s *Server) deleteCustomPlan(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.deps.Plans.Plans.Delete(ctx, planner.KindCustom, id); err != nil {
		abort(c, err)
		return
	}
	if s.deps.Shopping != nil {
		if err := s.deps.Shopping.Delete(ctx, planner.KindCustom, id); err != nil {
			s.log.Warn("failed to delete shopping list", zap.String("plan_id", id), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) savePreference(c *gin.Context) {
	var pref planner.CustomPreference
	if err := c.ShouldBindJSON(&pref); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	pref.TimestampMs = 0
	id, err := s.deps.Plans.Plans.SavePreference(c.Request.Context(), pref)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
}

// ==================== Ratings ====================

func (s *Server) setRating(c *gin.Context) {
	var rt rating.Rating
	if err := c.ShouldBindJSON(&rt); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	stored, err := s.deps.Ratings.Set(c.Request.Context(), rt)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "date": stored.Date})
}

// getRatings returns {date, ratings:{Slot: value}}. Without a date it
// reads today.
func (s *Server) getRatings(c *gin.Context) {
	date := c.Param("date")
	if date == "" {
		date = s.deps.Ratings.Today()
	}
	byslot, err := s.deps.Ratings.ForDate(c.Request.Context(), date)
	if err != nil {
		abort(c, err)
		return
	}
	values := make(map[shared.Slot]float64, len(byslot))
	for slot, rt := range byslot {
		values[slot] = rt.Value
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "ratings": values})
}

// ==================== Fitness ====================

type workoutRequest struct {
	Input *fitness.Input `json:"input" binding:"required"`
	Level string         `json:"level" binding:"required"`
}

type workoutResponse struct {
	fitness.Prediction
	WorkoutPlans []fitness.WorkoutPlan `json:"workout_plans"`
}

func (s *Server) predictWorkout(c *gin.Context) {
	if s.deps.Classifier == nil || s.deps.Workouts == nil {
		abort(c, Unavailable("workout prediction is not configured"))
		return
	}
	var req workoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, InvalidInput(err.Error()))
		return
	}
	if _, ok := fitness.ParseLevel(req.Level); !ok {
		abort(c, InvalidInput("level must be one of "+strings.Join(fitness.Levels, ", ")))
		return
	}

	pred, err := s.deps.Classifier.Classify(c.Request.Context(), *req.Input)
	if err != nil {
		abort(c, err)
		return
	}
	plans, err := s.deps.Workouts.Plans(pred.PredictedTypes, req.Level)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, workoutResponse{Prediction: pred, WorkoutPlans: plans})
}

// ==================== Shopping lists ====================

func (s *Server) shoppingList(kind planner.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		plan, err := s.deps.Plans.Plans.Get(ctx, kind, c.Param("id"))
		if err != nil {
			abort(c, err)
			return
		}
		var list *shopping.List
		if s.deps.Shopping != nil {
			list, err = s.deps.Shopping.ForPlan(ctx, plan)
			if err != nil {
				abort(c, err)
				return
			}
		} else {
			built := shopping.Build(plan)
			list = &built
		}
		c.JSON(http.StatusOK, list)
	}
}
