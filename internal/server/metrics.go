package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/textspot/internal/mempool"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textspot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textspot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Processing metrics
	processRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textspot_process_requests_total",
			Help: "Total number of decode and image requests",
		},
		[]string{"type", "status"}, // type: decode, image, websocket
	)

	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textspot_process_duration_seconds",
			Help:    "Decode or pipeline duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"type"},
	)

	regionsDetected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textspot_regions_detected",
			Help:    "Number of text regions surviving suppression",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textspot_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"endpoint"},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "textspot_upload_size_bytes",
			Help:    "Size of uploaded images and dumps in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textspot_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textspot_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)

	// Tensor buffer pool
	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "textspot_tensor_pool_gets_total",
			Help: "Input tensor buffers taken from the pool",
		},
		func() float64 { return float64(mempool.TensorStats().Gets) },
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "textspot_tensor_pool_misses_total",
			Help: "Input tensor buffers that had to be allocated",
		},
		func() float64 { return float64(mempool.TensorStats().Misses) },
	)
)

func observeResult(kind string, seconds float64, regions int) {
	processRequestsTotal.WithLabelValues(kind, "success").Inc()
	processDuration.WithLabelValues(kind).Observe(seconds)
	regionsDetected.WithLabelValues(kind).Observe(float64(regions))
}
