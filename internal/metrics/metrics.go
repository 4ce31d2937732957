package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docagg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docagg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// AggregationsTotal counts decoded aggregation specs by kind and outcome.
	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docagg_aggregations_total",
			Help: "Total number of aggregation specs executed",
		},
		[]string{"kind", "status"},
	)
	// PipelineDuration is the latency of pipeline requests sent to the engine.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docagg_pipeline_duration_seconds",
			Help:    "Engine aggregation request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "batch"},
	)
)

// Batch labels of PipelineDuration.
const (
	BatchFacet  = "facet"
	BatchValues = "values"
	BatchSingle = "single"
)
