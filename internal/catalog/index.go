package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-nutritionist/internal/llm"

	"go.uber.org/zap"
)

// ErrEmptyCatalog is returned when an index is built without rows.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Entry is one candidate day of meals.
type Entry struct {
	Breakfast         string `json:"breakfast"`
	Lunch             string `json:"lunch"`
	Dinner            string `json:"dinner"`
	Snack             string `json:"snack"`
	DietaryPreference string `json:"dietary_preference"`
	BudgetPreference  string `json:"budget_preference"`
}

// EmbeddingText is the text embedded for the row.
func (e Entry) EmbeddingText() string {
	return fmt.Sprintf("Breakfast: %s. Lunch: %s. Dinner: %s. Snack: %s. Dietary preference: %s. Budget: %s.",
		e.Breakfast, e.Lunch, e.Dinner, e.Snack, e.DietaryPreference, e.BudgetPreference)
}

// Tier identifies which preference-relaxation step produced a match.
type Tier int

const (
	TierBoth    Tier = 1
	TierBudget  Tier = 2
	TierDietary Tier = 3
	TierGlobal  Tier = 4
)

// Match is the result of a catalog query.
type Match struct {
	Entry Entry   `json:"entry"`
	Row   int     `json:"row"`
	Tier  Tier    `json:"tier"`
	Score float64 `json:"score"`
}

// Index holds catalog rows and their index-aligned embeddings.
type Index struct {
	entries    []Entry
	embeddings [][]float32
	diets      []string
	budgets    []string
	embedder   llm.EmbeddingGenerator
	timeout    time.Duration
	log        *zap.Logger
}

// NewIndex builds an index. An empty catalog or a count mismatch between
// entries and embeddings is an error.
func NewIndex(entries []Entry, embeddings [][]float32, embedder llm.EmbeddingGenerator, timeout time.Duration, log *zap.Logger) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(entries) != len(embeddings) {
		return nil, fmt.Errorf("catalog has %d entries but %d embeddings", len(entries), len(embeddings))
	}
	if log == nil {
		log = zap.NewNop()
	}

	idx := &Index{
		entries:    entries,
		embeddings: embeddings,
		diets:      make([]string, len(entries)),
		budgets:    make([]string, len(entries)),
		embedder:   embedder,
		timeout:    timeout,
		log:        log,
	}
	for i, e := range entries {
		idx.diets[i] = CanonicalDiet(e.DietaryPreference)
		idx.budgets[i] = CanonicalBudget(e.BudgetPreference)
	}
	return idx, nil
}

// Len returns the number of catalog rows.
func (x *Index) Len() int { return len(x.entries) }

// QueryText builds the natural-language query for a calorie target and
// optional preferences.
func QueryText(targetCalories float64, dietary, budget string) string {
	q := "A healthy meal plan for a person needing " + strconv.FormatFloat(targetCalories, 'f', -1, 64) + " calories"
	if dietary != "" {
		q += dietPhrase(CanonicalDiet(dietary))
	}
	if budget != "" {
		q += budgetPhrase(CanonicalBudget(budget))
	}
	return q
}

// BestMatch returns the most similar row, relaxing preference constraints
// in tiers: both masks, budget only, dietary only, then all rows. It never
// fails; if the query cannot be embedded every row scores zero and the
// lowest admitted row wins.
func (x *Index) BestMatch(ctx context.Context, targetCalories float64, dietary, budget string) Match {
	scores := x.similarities(ctx, QueryText(targetCalories, dietary, budget))

	wantDiet, wantBudget := CanonicalDiet(dietary), CanonicalBudget(budget)
	dietOK := func(i int) bool { return dietary == "" || x.diets[i] == wantDiet }
	budgetOK := func(i int) bool { return budget == "" || x.budgets[i] == wantBudget }

	tiers := []struct {
		tier  Tier
		admit func(int) bool
		apply bool
	}{
		{TierBoth, func(i int) bool { return dietOK(i) && budgetOK(i) }, true},
		{TierBudget, budgetOK, budget != ""},
		{TierDietary, dietOK, dietary != ""},
	}
	for _, t := range tiers {
		if !t.apply {
			continue
		}
		if row, ok := argmax(scores, t.admit); ok {
			return x.match(row, t.tier, scores)
		}
	}

	row, _ := argmax(scores, func(int) bool { return true })
	return x.match(row, TierGlobal, scores)
}

func (x *Index) match(row int, tier Tier, scores []float64) Match {
	return Match{Entry: x.entries[row], Row: row, Tier: tier, Score: scores[row]}
}

func (x *Index) similarities(ctx context.Context, query string) []float64 {
	scores := make([]float64, len(x.entries))
	if x.embedder == nil {
		return scores
	}

	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	q, err := x.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		x.log.Warn("query embedding failed, ranking by row order", zap.Error(err))
		return scores
	}
	for i, e := range x.embeddings {
		scores[i] = llm.CosineSimilarity(q, e)
	}
	return scores
}

// argmax returns the admitted row with the highest score. Ties go to the
// lowest index.
func argmax(scores []float64, admit func(int) bool) (int, bool) {
	best, found := -1, false
	for i, s := range scores {
		if !admit(i) {
			continue
		}
		if !found || s > scores[best] {
			best, found = i, true
		}
	}
	return best, found
}
