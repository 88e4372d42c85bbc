// Package metrics exposes the pipeline's Prometheus collectors. All
// collectors register on the default registry and are served by the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheEntries tracks the number of rows in the persistent validation
	// cache. The cache is append-only, so this only ever grows.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "validation_cache_entries",
		Help: "Number of entries in the persistent validation cache.",
	})

	// CacheLookups counts validation cache lookups by outcome (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_cache_lookups_total",
		Help: "Validation cache lookups by outcome.",
	}, []string{"outcome"})

	// QueueDepth tracks validation queue items by status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "validation_queue_depth",
		Help: "Validation queue items by status.",
	}, []string{"status"})

	// ItemsProcessed counts queue items the worker finished, by terminal
	// status (completed, failed).
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_items_processed_total",
		Help: "Queue items processed by the validation worker, by status.",
	}, []string{"status"})

	// FieldsUpdated counts property fields corrected by validation results.
	FieldsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_fields_updated_total",
		Help: "Property fields updated from validation results, by field.",
	}, []string{"field"})

	// Confidence observes the confidence score of each validation result.
	Confidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validation_confidence_score",
		Help:    "Confidence scores of validation results.",
		Buckets: []float64{0, 25, 50, 70, 90, 95, 100},
	})

	// GeocodeCalls counts outbound geocoding provider calls by method.
	GeocodeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_provider_calls_total",
		Help: "Outbound geocoding provider calls by method.",
	}, []string{"method"})
)
