package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-nutritionist/internal/calorie"
	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/database"
	"ai-nutritionist/internal/fitness"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shopping"
	"ai-nutritionist/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedMatcher struct{}

func (fixedMatcher) BestMatch(ctx context.Context, targetCalories float64, dietary, budget string) catalog.Match {
	return catalog.Match{
		Entry: catalog.Entry{
			Breakfast: "Oats with banana and nuts",
			Lunch:     "Chicken curry with brown rice",
			Dinner:    "Vegetable biryani",
			Snack:     "Moon cheese crackers",
		},
		Row:  3,
		Tier: catalog.TierBudget,
	}
}

type fixedPredictor struct{ probs []float64 }

func (p fixedPredictor) Predict(ctx context.Context, features []float32) ([]float64, error) {
	return p.probs, nil
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.NewSQLiteStore(db.SQL, []string{"custom_meal_plans.ts_ms", "meal_suggestions.ts_ms"})
	validator := safety.NewValidator(nil, safety.Options{})
	plans := planner.NewPlanRepository(st, validator, nil)
	resolver, err := recipe.NewResolver(ctx, nil, nil, recipe.Options{})
	require.NoError(t, err)
	composer := planner.NewComposer(calorie.MifflinStJeor{}, fixedMatcher{}, resolver, validator, plans, nil, nil)

	deps := Deps{
		Plans:    planner.NewService(composer, plans, validator),
		Recipes:  resolver,
		Ratings:  rating.NewRepository(st),
		Shopping: shopping.NewRepository(st),
		Metrics:  metrics.NewCollectors(),
		DataPath: t.TempDir(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return New(deps, gin.TestMode, zaptest.NewLogger(t))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

const testProfile = `{"age":30,"gender":"Male","height":175,"weight":70,"activity_level":"Moderate",
"dietary_preference":"Vegetarian","budget_preference":"Low","conditions":{"Diabetes":1}}`

func TestSuggestMeal(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/suggest-meal", testProfile)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Greater(t, resp.PredictedCalories, 0.0)
	assert.Equal(t, catalog.TierBudget, resp.MatchTier)
	assert.Equal(t, "Oats with banana and nuts", resp.SuggestedMeals["Breakfast"])
	assert.Contains(t, resp.Ingredients["Breakfast"], "oats")
	assert.Empty(t, resp.Ingredients["Snack"], "unknown recipe gives an empty block")

	w = do(t, s, http.MethodGet, "/meal-suggestions/"+resp.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.ID, decode(t, w)["id"])
}

func TestSuggestMealRejectsMalformed(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/suggest-meal", `{"age":30}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))

	w = do(t, s, http.MethodPost, "/suggest-meal", `{"age":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/suggest-meal", `{"age":30,"conditions":{"Scurvy":1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngredientEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/get-ingredients", `{"recipe":"boiled eggs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{"eggs", "salt"}, body["ingredients"])

	w = do(t, s, http.MethodPost, "/get-ingredients", `{"recipe":"Moon cheese crackers"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))

	w = do(t, s, http.MethodPost, "/get-ingredients", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/get-recipe-alternatives", `{"recipe":"Boiled eggs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["ingredients_with_alternatives"].([]any)
	assert.Len(t, rows, 2)

	w = do(t, s, http.MethodPost, "/get-recipe-alternatives", `{"recipe":"Boiled eggs","ingredient":"eggs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eggs", decode(t, w)["ingredient"])

	w = do(t, s, http.MethodPost, "/get-recipe-alternatives", `{"recipe":"Boiled eggs","ingredient":"saffron"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

const riceBreakfast = `{"recipe":"Rice bowl","ingredients_with_alternatives":[{"ingredient":"White Rice","alternatives":["brown rice"]}]}`

func TestValidateMealPlan(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/validate-meal-plan", `{"plan":{"breakfast":`+riceBreakfast+`},"conditions":["Diabetes"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res safety.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.IsSafe)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Breakfast", string(res.Warnings[0].MealSlot))
	assert.Equal(t, safety.SeverityModerate, res.Warnings[0].Severity)
	assert.Contains(t, res.Warnings[0].Reasons[0], "white rice")

	w = do(t, s, http.MethodPost, "/validate-meal-plan", `{"plan":{},"conditions":["Diabetes"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateMealPlanProfileShapes(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/validate-meal-plan",
		`{"plan":{"profile":{"Diabetes":1,"Hypertension":0},"meals":{"Breakfast":`+riceBreakfast+`}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res safety.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.IsSafe, "flat condition flags apply")
	require.Len(t, res.Warnings, 1)

	w = do(t, s, http.MethodPost, "/validate-meal-plan",
		`{"plan":{"meals":{"breakfast":{"recipe":"Poha"},"Breakfast":`+riceBreakfast+`}},"conditions":["Diabetes"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))

	// Top-level slot fields replace the same slot under "meals".
	w = do(t, s, http.MethodPost, "/validate-meal-plan",
		`{"plan":{"breakfast":{"recipe":"Oats","ingredients_with_alternatives":[{"ingredient":"oats"}]},"meals":{"Breakfast":`+riceBreakfast+`}},"conditions":["Diabetes"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.IsSafe)
}

func TestCustomPlanLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/custom-meal-plan",
		`{"breakfast":`+riceBreakfast+`,"note":"first","profile":`+testProfile+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, false, created["validation"].(map[string]any)["is_safe"])

	w = do(t, s, http.MethodGet, "/custom-meal-plan/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = do(t, s, http.MethodPut, "/custom-meal-plan/"+id,
		`{"note":"second","meals":{"breakfast":{"recipe":"Oats","ingredients_with_alternatives":[{"ingredient":"oats","alternatives":[]}]}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["validation"].(map[string]any)["is_safe"])

	w = do(t, s, http.MethodGet, "/custom-meal-plan/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "second", got["note"])
	assert.NotZero(t, got["ts_ms_updated"])

	w = do(t, s, http.MethodGet, "/custom-meal-plans?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = do(t, s, http.MethodGet, "/custom-meal-plans?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, "/custom-meal-plan/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/custom-meal-plan/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodDelete, "/custom-meal-plan/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodGet, "/custom-meal-plan/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShoppingList(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/suggest-meal", testProfile)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = do(t, s, http.MethodGet, "/meal-suggestions/"+id+"/shopping-list", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list shopping.List
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, id, list.PlanID)
	assert.Equal(t, "ai", list.PlanKind)
	require.NotEmpty(t, list.Items)
	assert.Equal(t, "oats", list.Items[0].Name)

	w = do(t, s, http.MethodGet, "/meal-suggestions/missing/shopping-list", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Without a repository the list is built on the fly.
	s = newTestServer(t, func(d *Deps) { d.Shopping = nil })
	w = do(t, s, http.MethodPost, "/custom-meal-plan", `{"breakfast":`+riceBreakfast+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id = decode(t, w)["id"].(string)
	w = do(t, s, http.MethodGet, "/custom-meal-plan/"+id+"/shopping-list", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "custom", decode(t, w)["plan_kind"])
}

func TestCustomPreference(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/custom-preference",
		`{"meal_type":"dinner","preferred_recipe":"Dal tadka","selected_alternatives":{"ghee":"olive oil"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["id"])

	w = do(t, s, http.MethodPost, "/custom-preference", `{"meal_type":"brunch","preferred_recipe":"Eggs"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRatings(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/ratings/set", `{"date":"2024-01-01","meal_type":"Lunch","rating":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, s, http.MethodPost, "/ratings/set", `{"date":"2024-01-01","meal_type":"lunch","rating":4}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/ratings/2024-01-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]any{"Lunch": 4.0}, body["ratings"])

	w = do(t, s, http.MethodPost, "/ratings/set", `{"meal_type":"Lunch","rating":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/ratings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["ratings"])
}

func TestPredictWorkout(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := do(t, s, http.MethodPost, "/predict-workout", `{"input":{"age":30},"level":"Easy"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cardio_Easy.csv"), []byte("Day,Exercise\nMonday,Jogging\n"), 0o644))
	s := newTestServer(t, func(d *Deps) {
		d.Classifier = fitness.NewClassifier(fixedPredictor{probs: []float64{0.9, 0.1}}, []string{"Cardio", "Yoga"}, nil)
		d.Workouts = fitness.NewWorkoutLibrary(dir)
	})

	w := do(t, s, http.MethodPost, "/predict-workout",
		`{"input":{"age":30,"height":175,"weight":70,"weight_loss":1},"level":"easy"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, []any{"Cardio"}, body["predicted_types"])
	plans := body["workout_plans"].([]any)
	require.Len(t, plans, 1)
	assert.Equal(t, "Cardio", plans[0].(map[string]any)["type"])

	w = do(t, s, http.MethodPost, "/predict-workout", `{"input":{"age":30,"height":175,"weight":70},"level":"Expert"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodPost, "/predict-workout", `{"input":{"age":0,"height":175,"weight":70},"level":"Easy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodPost, "/predict-workout", `{"level":"Easy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `nutritionist_http_requests_total{method="GET",route="/health",status="200"} 1`), w.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/suggest-meal", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFromError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, FromError(recipe.ErrRecipeNotFound).HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, FromError(rating.ErrInvalidRating).HTTPStatus)
	internal := FromError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Equal(t, "internal server error", internal.Message)
}
