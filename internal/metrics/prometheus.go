package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_scan_duration_seconds",
			Help:    "Label scan processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"input_type"},
	)

	ScanTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_scan_total",
			Help: "Total number of label scans processed",
		},
		[]string{"status"},
	)

	ItemsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_items_classified_total",
			Help: "Total ingredient items classified",
		},
		[]string{"source"},
	)

	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_enrichment_total",
			Help: "EU enrichment outcomes per item",
		},
		[]string{"outcome"},
	)

	RegistryFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelscan_registry_fetch_duration_seconds",
			Help:    "EU registry fetch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 45},
		},
		[]string{"format"},
	)

	RegistryFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_registry_fetch_total",
			Help: "EU registry fetches by format and result",
		},
		[]string{"format", "result"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	TranslationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_translation_total",
			Help: "Secondary-language translation attempts",
		},
		[]string{"result"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	GuideChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labelscan_guide_chunks_indexed_total",
			Help: "Total risk-guide chunks indexed",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		ScanDuration,
		ScanTotal,
		ItemsClassified,
		EnrichmentTotal,
		RegistryFetchDuration,
		RegistryFetchTotal,
		CacheHits,
		CacheMisses,
		TranslationTotal,
		LLMTokensUsed,
		GuideChunksIndexed,
	)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
