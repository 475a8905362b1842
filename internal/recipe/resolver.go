package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Observer is told which tier answered each resolution.
type Observer interface {
	ObserveIngredientSource(source string)
}

// Options tune a Resolver. Zero values are usable.
type Options struct {
	// CompletionTimeout bounds one generative completion. Zero means 20s.
	CompletionTimeout time.Duration
	// SaveGenerated appends completed rows to the repository.
	SaveGenerated bool
	Observer      Observer
	Logger        *zap.Logger
}

// Resolver maps recipe names to ingredient rows. Stored rows are loaded into
// memory at construction and only ever appended to afterwards.
type Resolver struct {
	repo      *Repository
	completer Completer
	opts      Options
	log       *zap.Logger

	mu    sync.RWMutex
	rows  map[string][]Mapping
	names map[string]string
}

// NewResolver loads every stored row from repo. repo and completer may be nil.
func NewResolver(ctx context.Context, repo *Repository, completer Completer, opts Options) (*Resolver, error) {
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 20 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		repo:      repo,
		completer: completer,
		opts:      opts,
		log:       log,
		rows:      make(map[string][]Mapping),
		names:     make(map[string]string),
	}
	if repo != nil {
		stored, err := repo.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ingredient mappings: %w", err)
		}
		r.merge(stored)
		log.Info("ingredient mappings loaded", zap.Int("rows", len(stored)), zap.Int("recipes", len(r.rows)))
	}
	return r, nil
}

func (r *Resolver) merge(rows []Mapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range rows {
		key := recipeKey(m.Recipe)
		if key == "" {
			continue
		}
		if _, ok := r.names[key]; !ok {
			r.names[key] = strings.TrimSpace(m.Recipe)
		}
		r.rows[key] = append(r.rows[key], m)
	}
}

func (r *Resolver) stored(name string) (string, []Mapping) {
	key := recipeKey(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.rows[key]
	if len(rows) == 0 {
		return "", nil
	}
	out := make([]Mapping, len(rows))
	for i, m := range rows {
		out[i] = m.clean()
	}
	return r.names[key], out
}

// Recipes returns the number of distinct recipes held in memory.
func (r *Resolver) Recipes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// Resolve returns the ingredient rows for name. Tiers are tried in order:
// stored rows, generative completion, then the static table.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{}, ErrRecipeNotFound
	}

	if canonical, rows := r.stored(name); len(rows) > 0 {
		r.observe(SourceStored)
		return Resolution{Recipe: canonical, Source: SourceStored, Mappings: rows}, nil
	}

	if rows, ok := r.complete(ctx, name); ok {
		r.observe(SourceGenerated)
		return Resolution{Recipe: name, Source: SourceGenerated, Mappings: rows}, nil
	}

	if canonical, items, ok := staticLookup(name); ok {
		rows := make([]Mapping, 0, len(items))
		for _, it := range items {
			rows = append(rows, Mapping{Recipe: canonical, Ingredient: it, Alternatives: []string{}})
		}
		r.observe(SourceStatic)
		return Resolution{Recipe: canonical, Source: SourceStatic, Mappings: rows}, nil
	}

	r.observe("not_found")
	return Resolution{}, fmt.Errorf("%q: %w", name, ErrRecipeNotFound)
}

func (r *Resolver) complete(ctx context.Context, name string) ([]Mapping, bool) {
	if r.completer == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, r.opts.CompletionTimeout)
	defer cancel()

	rows, err := r.completer.Complete(cctx, name)
	if err != nil {
		r.log.Warn("ingredient completion failed, using static table", zap.String("recipe", name), zap.Error(err))
		return nil, false
	}
	cleaned := make([]Mapping, 0, len(rows))
	for _, m := range rows {
		m.Recipe = name
		m = m.clean()
		if m.Ingredient != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return nil, false
	}

	if r.opts.SaveGenerated && r.repo != nil {
		if err := r.repo.Append(ctx, cleaned, SourceGenerated); err != nil {
			r.log.Error("failed to persist generated ingredients", zap.String("recipe", name), zap.Error(err))
		}
	}
	r.merge(cleaned)
	r.log.Info("ingredient mappings generated", zap.String("recipe", name), zap.Int("rows", len(cleaned)))
	return cleaned, true
}

// Alternatives returns the cleaned alternatives of ingredient within recipe.
func (r *Resolver) Alternatives(ctx context.Context, recipe, ingredient string) ([]string, error) {
	res, err := r.Resolve(ctx, recipe)
	if err != nil {
		return nil, err
	}
	var found bool
	var alts []string
	for _, m := range res.Mappings {
		if !strings.EqualFold(m.Ingredient, strings.TrimSpace(ingredient)) {
			continue
		}
		found = true
		alts = append(alts, m.Alternatives...)
	}
	if !found {
		return nil, fmt.Errorf("ingredient %q in %q: %w", ingredient, recipe, ErrRecipeNotFound)
	}
	return CleanAlternatives(ingredient, alts), nil
}

func (r *Resolver) observe(source Source) {
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveIngredientSource(string(source))
	}
}

// IsNotFound reports whether err means no tier knew the recipe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecipeNotFound)
}
