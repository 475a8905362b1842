// Package httpapi serves the nutritionist over JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/fitness"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/shopping"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// IngredientLookup resolves recipes to ingredient rows.
type IngredientLookup interface {
	Resolve(ctx context.Context, name string) (recipe.Resolution, error)
	Alternatives(ctx context.Context, recipe, ingredient string) ([]string, error)
}

// Deps are the services the handlers call. Shopping, Classifier, Workouts
// and Metrics may be nil.
type Deps struct {
	Plans      *planner.Service
	Recipes    IngredientLookup
	Ratings    *rating.Repository
	Shopping   *shopping.Repository
	Classifier *fitness.Classifier
	Workouts   *fitness.WorkoutLibrary
	Metrics    *metrics.Collectors
	DataPath   string
}

// Server owns the gin engine.
type Server struct {
	deps   Deps
	log    *zap.Logger
	router *gin.Engine
}

// New builds the router. mode is a gin mode ("debug", "release", "test").
func New(deps Deps, mode string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{deps: deps, log: log.Named("http"), router: gin.New()}
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))
	if deps.Metrics != nil {
		s.router.Use(requestMetrics(deps.Metrics))
	}
	s.router.Use(allowAll())
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.GET("/health", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	r.POST("/suggest-meal", s.suggestMeal)
	r.GET("/meal-suggestions/:id", s.getSuggestion)
	r.GET("/meal-suggestions/:id/shopping-list", s.shoppingList(planner.KindAI))

	r.POST("/get-ingredients", s.getIngredients)
	r.POST("/get-recipe-alternatives", s.getRecipeAlternatives)

	r.POST("/validate-meal-plan", s.validatePlan)
	r.POST("/custom-meal-plan", s.createCustomPlan)
	r.GET("/custom-meal-plan/latest", s.latestCustomPlan)
	r.GET("/custom-meal-plan/:id", s.getCustomPlan)
	r.PUT("/custom-meal-plan/:id", s.updateCustomPlan)
	r.DELETE("/custom-meal-plan/:id", s.deleteCustomPlan)
	r.GET("/custom-meal-plan/:id/shopping-list", s.shoppingList(planner.KindCustom))
	r.GET("/custom-meal-plans", s.listCustomPlans)
	r.POST("/custom-preference", s.savePreference)

	r.POST("/ratings/set", s.setRating)
	r.GET("/ratings", s.getRatings)
	r.GET("/ratings/:date", s.getRatings)

	r.POST("/predict-workout", s.predictWorkout)
}

// ListenAndServe serves until ctx is cancelled, then shuts down within the
// configured timeout.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}
