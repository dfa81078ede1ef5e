package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdpoa_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"query_type"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdpoa_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status", "response_type"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdpoa_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{},
	)

	AgentResultsCount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdpoa_agent_results_count",
			Help:    "Number of results returned per retrieval agent",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"agent"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdpoa_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdpoa_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	GapsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdpoa_knowledge_gaps_total",
			Help: "Knowledge gaps recorded by the detector",
		},
		[]string{"category", "severity"},
	)

	ContradictionsFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdpoa_contradictions_total",
			Help: "Numeric contradictions flagged by cross-validation",
		},
	)

	BetaResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdpoa_beta_responses_total",
			Help: "Responses replaced by the beta fallback",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdpoa_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pdpoa_articles_ingested_total",
			Help: "Legal articles processed by ingestion",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdpoa_sweep_duration_seconds",
			Help:    "Full neighborhood sweep duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600},
		},
	)

	SweepFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdpoa_sweep_failures",
			Help: "Failed items in the last sweep run",
		},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to
// call more than once.
func Init() {
	registerOnce.Do(registerAll)
}

func registerAll() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(AgentResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(GapsDetected)
	prometheus.MustRegister(ContradictionsFound)
	prometheus.MustRegister(BetaResponses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ArticlesIngested)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepFailures)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
