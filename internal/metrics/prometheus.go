package metrics

import (
	"strconv"
	"time"

	"ai-nutritionist/internal/shared"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the Prometheus series the service exports. All
// methods are safe on a nil receiver so callers can run without metrics.
type Collectors struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	catalogTier      *prometheus.CounterVec
	ingredientSource *prometheus.CounterVec
	safetyPath       *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
}

// NewCollectors registers all series on a fresh registry.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collectors{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutritionist_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nutritionist_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		catalogTier: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutritionist_catalog_match_tier_total",
			Help: "Catalog matches by preference-relaxation tier.",
		}, []string{"tier"}),
		ingredientSource: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutritionist_ingredient_resolutions_total",
			Help: "Ingredient resolutions by source tier.",
		}, []string{"source"}),
		safetyPath: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutritionist_safety_validations_total",
			Help: "Safety validations by evaluation path.",
		}, []string{"path"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nutritionist_llm_tokens_total",
			Help: "Tokens consumed by generative calls.",
		}, []string{"agent", "kind"}),
	}
}

// ObserveHTTP records one served request.
func (c *Collectors) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveCatalogTier records which relaxation tier answered a match.
func (c *Collectors) ObserveCatalogTier(tier int) {
	if c == nil {
		return
	}
	c.catalogTier.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// ObserveIngredientSource records which tier resolved a recipe.
func (c *Collectors) ObserveIngredientSource(source string) {
	if c == nil {
		return
	}
	c.ingredientSource.WithLabelValues(source).Inc()
}

// ObserveSafetyPath records whether the reviewer or the rule table answered.
func (c *Collectors) ObserveSafetyPath(path string) {
	if c == nil {
		return
	}
	c.safetyPath.WithLabelValues(path).Inc()
}

// RecordMeta exports token usage. It satisfies shared.MetaRecorder.
func (c *Collectors) RecordMeta(meta shared.AgentMeta) error {
	if c == nil {
		return nil
	}
	c.llmTokens.WithLabelValues(meta.AgentName, "prompt").Add(float64(meta.Usage.PromptTokens))
	c.llmTokens.WithLabelValues(meta.AgentName, "completion").Add(float64(meta.Usage.CompletionTokens))
	return nil
}

// MultiRecorder fans AgentMeta out to several recorders and returns the
// first error.
type MultiRecorder []shared.MetaRecorder

func (m MultiRecorder) RecordMeta(meta shared.AgentMeta) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordMeta(meta); err != nil && first == nil {
			first = err
		}
	}
	return first
}
