package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const catalogCSV = "Breakfast Suggestion,Lunch Suggestion,Dinner Suggestion,Snack Suggestion,Dietary Preference,Budget Preferences\n" +
	"Poha with peanuts,Dal rice,Paneer curry with roti,Fruit salad,Vegetarian,Low\n" +
	"Egg omelette,Chicken curry with rice,Grilled fish,Boiled eggs,Non-Vegetarian,High\n"

const ingredientsCSV = "Recipe,Ingredient,Alternative_1,Alternative_2,Alternative_3\n" +
	"Dal rice,white rice,brown rice,quinoa,\n" +
	"Dal rice,toor dal,moong dal,,\n" +
	"Poha with peanuts,flattened rice,oats,,\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(data), 0644))
		return p
	}
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "db", "test.db")},
		Data: config.DataConfig{
			CatalogCSV:     write("meal_plans.csv", catalogCSV),
			IngredientsCSV: write("ingredients.csv", ingredientsCSV),
		},
		LLM:     config.LLMConfig{Timeout: time.Second},
		Store:   config.StoreConfig{Indexes: []string{"meal_suggestions.ts_ms"}},
		Fitness: config.FitnessConfig{WorkoutsDir: filepath.Join(dir, "workouts")},
	}
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestBuildOfflineGraph(t *testing.T) {
	ctx := context.Background()
	a := openApp(t, testConfig(t))
	require.NoError(t, a.Build(ctx))

	assert.Equal(t, 2, a.Catalog.Len())
	assert.Equal(t, 2, a.Resolver.Recipes())
	assert.Nil(t, a.generator)
	assert.Nil(t, a.Classifier, "no predictor configured")
	assert.NotNil(t, a.Workouts)

	gen, err := a.Plans.Compose(ctx, profile.Profile{
		Age:               30,
		Gender:            "Male",
		Height:            175,
		Weight:            72,
		ActivityLevel:     "Moderate",
		DietaryPreference: "Vegetarian",
		BudgetPreference:  "Low",
		Conditions:        profile.ConditionFlags{profile.Diabetes: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dal rice", gen.Plan.Meals[shared.Lunch].Recipe)
	assert.Equal(t, []string{"white rice", "toor dal"}, gen.Plan.Meals[shared.Lunch].Ingredients())
	assert.False(t, gen.Plan.Validation.IsSafe, "white rice is flagged for diabetes")

	stored, err := a.Plans.Plans.Get(ctx, planner.KindAI, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.Plan.Meals, stored.Meals)
}

func TestIngestIsRepeatable(t *testing.T) {
	ctx := context.Background()
	a := openApp(t, testConfig(t))

	first, err := a.Ingest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{CatalogRows: 2, EmbeddingsNew: 2, IngredientRows: 3}, first)

	again, err := a.Ingest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{CatalogRows: 2, EmbeddingsReused: 2, IngredientsSkipped: true}, again)

	forced, err := a.Ingest(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, forced.IngredientRows)

	count, err := a.Ingredients.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingCatalog", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.CatalogCSV = filepath.Join(t.TempDir(), "absent.csv")
		a := openApp(t, cfg)
		assert.ErrorContains(t, a.Build(ctx), "failed to load catalog")
	})

	t.Run("MissingIngredientsIsTolerated", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.IngredientsCSV = filepath.Join(t.TempDir(), "absent.csv")
		a := openApp(t, cfg)
		require.NoError(t, a.Build(ctx))
		assert.Equal(t, 0, a.Resolver.Recipes())

		_, err := a.Ingest(ctx, true)
		assert.ErrorContains(t, err, "failed to open ingredient CSV")
	})

	t.Run("MissingLabels", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Fitness.PredictorURL = "http://localhost:1/predict"
		cfg.Fitness.LabelsPath = filepath.Join(t.TempDir(), "labels.txt")
		a := openApp(t, cfg)
		assert.ErrorContains(t, a.Build(ctx), "workout labels")
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Path = ""
		_, err := Open(cfg, nil)
		assert.ErrorContains(t, err, "invalid configuration")
	})
}

func TestRestartReusesStoredState(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := Open(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.Build(ctx))
	gen, err := first.Plans.Compose(ctx, profile.Profile{
		Age: 40, Gender: "Female", Height: 165, Weight: 60,
		ActivityLevel: "Light", DietaryPreference: "Non-Vegetarian", BudgetPreference: "High",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openApp(t, cfg)
	report, err := second.Ingest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.EmbeddingsReused)
	assert.True(t, report.IngredientsSkipped)

	require.NoError(t, second.Build(ctx))
	stored, err := second.Plans.Plans.Get(ctx, planner.KindAI, gen.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grilled fish", stored.Meals[shared.Dinner].Recipe)
}
