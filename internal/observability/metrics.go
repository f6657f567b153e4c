package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/edgedrop/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgedrop",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgedrop",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	transferSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgedrop",
			Subsystem: "transfer",
			Name:      "sessions_total",
			Help:      "Finished transfer sessions by role and outcome.",
		},
		[]string{"role", "outcome", "reason"},
	)
	transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgedrop",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Payload bytes moved by finished sessions.",
		},
		[]string{"role"},
	)
	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgedrop",
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "Transfer session duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"role", "outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgedrop",
			Subsystem: "transfer",
			Name:      "active_sessions",
			Help:      "Sessions currently running.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, transferSessions, transferBytes, transferDuration, activeSessions)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// SessionStarted tracks one running session; call the returned func once
// it ends.
func SessionStarted() func() {
	RegisterMetrics()
	activeSessions.Inc()
	var once sync.Once
	return func() { once.Do(activeSessions.Dec) }
}

// RecordTransfer records one finished session. reason is empty on success
// and is reduced with protocol.ReasonLabel before use as a label.
func RecordTransfer(role, outcome, reason string, bytes uint64, duration time.Duration) {
	RegisterMetrics()
	transferSessions.WithLabelValues(role, outcome, protocol.ReasonLabel(reason)).Inc()
	transferBytes.WithLabelValues(role).Add(float64(bytes))
	transferDuration.WithLabelValues(role, outcome).Observe(duration.Seconds())
}
