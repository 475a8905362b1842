package shopping

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ai-nutritionist/internal/database"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/shared"
	"ai-nutritionist/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(names ...string) []recipe.Mapping {
	out := make([]recipe.Mapping, len(names))
	for i, n := range names {
		out[i] = recipe.Mapping{Ingredient: n}
	}
	return out
}

func testPlan() *planner.MealPlan {
	return &planner.MealPlan{
		ID:   "plan-1",
		Kind: planner.KindAI,
		Meals: map[shared.Slot]*planner.MealBlock{
			shared.Snack:     planner.NewMealBlock("Fruit bowl", rows("banana", "apple")),
			shared.Breakfast: planner.NewMealBlock("Oats", rows("oats", "Banana", "milk")),
			shared.Dinner:    planner.NewMealBlock("Khichdi", rows("rice", "moong dal", "ghee")),
			shared.Lunch:     planner.NewMealBlock("Dal rice", rows("Rice", "toor dal")),
		},
	}
}

func TestBuild(t *testing.T) {
	list := Build(testPlan())
	assert.Equal(t, "plan-1", list.PlanID)
	assert.Equal(t, "ai", list.PlanKind)
	assert.Equal(t, []string{"oats", "Banana", "milk", "Rice", "toor dal", "moong dal", "ghee", "apple"}, list.Names())
	assert.Equal(t, []shared.Slot{shared.Breakfast, shared.Snack}, list.Items[1].Meals)
	assert.Equal(t, []shared.Slot{shared.Lunch, shared.Dinner}, list.Items[3].Meals)

	empty := Build(&planner.MealPlan{ID: "x", Meals: map[shared.Slot]*planner.MealBlock{}})
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestRepositoryForPlan(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "shopping.db"))
	require.NoError(t, err)
	defer db.Close()

	st := store.NewSQLiteStore(db.SQL, nil)
	repo := NewRepository(st)
	repo.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	plan := testPlan()
	first, err := repo.ForPlan(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), first.CreatedMs)

	_, err = st.GetNode(ctx, "shopping_lists/ai_plan-1")
	require.NoError(t, err)

	repo.now = func() time.Time { return time.UnixMilli(1_800_000_000_000) }
	again, err := repo.ForPlan(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedMs, again.CreatedMs, "unchanged plan reuses the stored list")

	plan.UpdatedMs = 42
	plan.Meals[shared.Lunch] = planner.NewMealBlock("Curd rice", rows("rice", "curd"))
	rebuilt, err := repo.ForPlan(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, int64(1_800_000_000_000), rebuilt.CreatedMs)
	assert.Contains(t, rebuilt.Names(), "curd")
	assert.NotContains(t, rebuilt.Names(), "toor dal")

	require.NoError(t, repo.Delete(ctx, planner.KindAI, "plan-1"))
	require.NoError(t, repo.Delete(ctx, planner.KindAI, "plan-1"))
	_, err = st.GetNode(ctx, "shopping_lists/ai_plan-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
