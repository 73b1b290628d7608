package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safewatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "safewatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "safewatch",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	alertOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "safewatch",
			Subsystem: "alerts",
			Name:      "operations_total",
			Help:      "Alert mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	mediaStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "safewatch",
			Subsystem: "media",
			Name:      "stored_bytes_total",
			Help:      "Bytes written to the media store",
		},
	)

	mediaSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "safewatch",
			Subsystem: "media",
			Name:      "swept_total",
			Help:      "Unreferenced media objects removed by the sweeper",
		},
	)
)

// Middleware records request counts and latencies keyed by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAlertOperation(operation, outcome string) {
	alertOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordMediaStored(bytes int64) {
	mediaStoredBytes.Add(float64(bytes))
}

func RecordMediaSwept(count int) {
	mediaSweptTotal.Add(float64(count))
}
