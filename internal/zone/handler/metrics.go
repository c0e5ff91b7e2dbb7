package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	zoneAttestationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zone_attestations_total",
		Help: "Total attestations appended to the ledger.",
	})

	zoneRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zone_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	zoneRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zone_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	zoneCitationChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zone_citation_checks_total",
		Help: "Total citation verification outcomes by status.",
	}, []string{"status"})

	zoneAnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zone_anchors_total",
		Help: "Total anchors recorded by source type.",
	}, []string{"source"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		zoneRequestsTotal.WithLabelValues(method, path, status).Inc()
		zoneRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAttestation records a successful ledger append.
func RecordAttestation() {
	zoneAttestationsTotal.Inc()
}

// RecordCitationCheck records a citation verification outcome.
func RecordCitationCheck(status string) {
	zoneCitationChecksTotal.WithLabelValues(status).Inc()
}

// RecordAnchor records an anchor obtained from the given source type.
func RecordAnchor(source string) {
	zoneAnchorsTotal.WithLabelValues(source).Inc()
}
