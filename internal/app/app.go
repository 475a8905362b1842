package app

import (
	"context"
	"fmt"
	"path/filepath"

	"ai-nutritionist/internal/calorie"
	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/database"
	"ai-nutritionist/internal/fitness"
	"ai-nutritionist/internal/llm"
	"ai-nutritionist/internal/logger"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/safety"
	"ai-nutritionist/internal/shopping"
	"ai-nutritionist/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// hashingDims is the vector size of the offline embedder.
const hashingDims = 256

// App holds the application's dependencies. Open sets up storage; Build adds
// the planning graph on top of it.
type App struct {
	cfg *config.Config
	log *zap.Logger
	db  *database.DB

	Store    *store.SQLiteStore
	Usage    *metrics.Store
	Metrics  *metrics.Collectors
	Ratings  *rating.Repository
	Shopping *shopping.Repository

	Ingredients *recipe.Repository
	Embeddings  *catalog.EmbeddingRepository

	// Set by Build.
	Catalog    *catalog.Index
	Resolver   *recipe.Resolver
	Validator  *safety.Validator
	Plans      *planner.Service
	Classifier *fitness.Classifier
	Workouts   *fitness.WorkoutLibrary

	generator llm.StructuredGenerator
	gemini    *llm.GeminiClient
	embedder  llm.EmbeddingGenerator
	fileCache *llm.CachedEmbeddingGenerator
	redis     *redis.Client
}

// Open connects the database and the repositories every command needs.
func Open(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	st := store.NewSQLiteStore(db.SQL, cfg.Store.Indexes)
	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		Store:       st,
		Usage:       metrics.NewStore(db.SQL),
		Metrics:     metrics.NewCollectors(),
		Ratings:     rating.NewRepository(st),
		Shopping:    shopping.NewRepository(st),
		Ingredients: recipe.NewRepository(db.SQL),
		Embeddings:  catalog.NewEmbeddingRepository(db.SQL),
	}, nil
}

// DataPath is the directory holding the database and caches.
func (a *App) DataPath() string {
	return filepath.Dir(a.cfg.Database.Path)
}

// Recorder fans agent usage out to the usage table and Prometheus.
func (a *App) Recorder() metrics.MultiRecorder {
	return metrics.MultiRecorder{a.Usage, a.Metrics}
}

// Build wires the generative backends, the catalog index, the resolver, the
// validator and the plan service.
func (a *App) Build(ctx context.Context) error {
	if err := a.initLLM(ctx); err != nil {
		return err
	}

	estimator, err := calorie.New(a.cfg.Data.CalorieModel)
	if err != nil {
		return fmt.Errorf("failed to load calorie model: %w", err)
	}

	entries, vectors, _, err := a.buildCatalog(ctx)
	if err != nil {
		return err
	}
	a.Catalog, err = catalog.NewIndex(entries, vectors, a.embedder, a.cfg.LLM.Timeout, logger.Component(a.log, "catalog"))
	if err != nil {
		return fmt.Errorf("failed to build catalog index: %w", err)
	}

	if _, err := a.seedIngredients(ctx, false); err != nil {
		return err
	}

	var completer recipe.Completer
	var reviewer safety.Reviewer
	if a.generator != nil {
		completer = recipe.NewGenerativeCompleter(a.generator, a.Recorder())
		reviewer = safety.NewLLMReviewer(a.generator, a.Recorder())
	}

	a.Resolver, err = recipe.NewResolver(ctx, a.Ingredients, completer, recipe.Options{
		CompletionTimeout: a.cfg.LLM.Timeout,
		SaveGenerated:     a.cfg.LLM.SaveGenerated,
		Observer:          a.Metrics,
		Logger:            logger.Component(a.log, "resolver"),
	})
	if err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}

	a.Validator = safety.NewValidator(reviewer, safety.Options{
		ReviewTimeout: a.cfg.LLM.Timeout,
		Observer:      a.Metrics,
		Logger:        logger.Component(a.log, "safety"),
	})

	plans := planner.NewPlanRepository(a.Store, a.Validator, logger.Component(a.log, "plans"))
	composer := planner.NewComposer(estimator, a.Catalog, a.Resolver, a.Validator, plans, a.Metrics, logger.Component(a.log, "composer"))
	a.Plans = planner.NewService(composer, plans, a.Validator)

	if err := a.initFitness(); err != nil {
		return err
	}

	a.log.Info("application ready",
		zap.Int("catalog_rows", a.Catalog.Len()),
		zap.Int("recipes", a.Resolver.Recipes()),
		zap.Bool("generative", a.generator != nil),
		zap.String("embedding_model", llm.ModelNameOf(a.embedder)),
		zap.Bool("fitness", a.Classifier != nil))
	return nil
}

// initLLM selects Gemini, then Groq, for structured generation and Gemini or
// the hashing embedder for embeddings. Safe to call more than once.
func (a *App) initLLM(ctx context.Context) error {
	if a.embedder != nil {
		return nil
	}
	cfg := a.cfg.LLM

	switch {
	case cfg.GeminiAPIKey != "":
		gemini, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		a.gemini = gemini
		a.generator = gemini
	case cfg.GroqAPIKey != "":
		a.generator = llm.NewGroqClient(cfg)
	default:
		a.log.Warn("no generative backend configured, using deterministic fallbacks")
	}

	if a.gemini == nil {
		a.embedder = llm.NewHashingEmbedder(hashingDims)
		return nil
	}

	var embedder llm.EmbeddingGenerator = a.gemini
	if a.cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		embedder = llm.NewRedisEmbeddingCache(embedder, a.redis, a.cfg.Redis.TTL, logger.Component(a.log, "redis"))
	}
	if cfg.EmbeddingCache != "" {
		cached, err := llm.NewCachedEmbeddingGenerator(embedder, cfg.EmbeddingCache, logger.Component(a.log, "embeddings"))
		if err != nil {
			return fmt.Errorf("failed to open embedding cache: %w", err)
		}
		a.fileCache = cached
		embedder = cached
	}
	a.embedder = embedder
	return nil
}

func (a *App) initFitness() error {
	fc := a.cfg.Fitness
	a.Workouts = fitness.NewWorkoutLibrary(fc.WorkoutsDir)
	if !fc.Enabled() {
		return nil
	}
	labels, err := fitness.LoadLabels(fc.LabelsPath)
	if err != nil {
		return fmt.Errorf("failed to load workout labels: %w", err)
	}
	a.Classifier = fitness.NewClassifier(fitness.NewRemotePredictor(fc.PredictorURL, fc.Timeout), labels, logger.Component(a.log, "fitness"))
	return nil
}

// Close releases the database, the LLM client and the Redis connection, and
// flushes the embedding cache.
func (a *App) Close() error {
	if a.fileCache != nil {
		if err := a.fileCache.SaveCache(); err != nil {
			a.log.Warn("failed to save embedding cache", zap.Error(err))
		}
	}
	if a.gemini != nil {
		a.gemini.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	return a.db.Close()
}
