package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riakmr",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riakmr",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	mapreduceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riakmr",
			Subsystem: "mapreduce",
			Name:      "requests_total",
			Help:      "Map-reduce requests by outcome.",
		},
		[]string{"outcome"},
	)
	mapreduceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riakmr",
			Subsystem: "mapreduce",
			Name:      "duration_seconds",
			Help:      "Map-reduce request duration in seconds, send through last byte.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	streamBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riakmr",
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Payload bytes delivered to sinks.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, mapreduceRequests, mapreduceDuration, streamBytes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordMapReduce counts one finished request. outcome is "ok" or an error kind.
func RecordMapReduce(outcome string, delivered int64, duration time.Duration) {
	RegisterMetrics()
	mapreduceRequests.WithLabelValues(outcome).Inc()
	mapreduceDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if delivered > 0 {
		streamBytes.Add(float64(delivered))
	}
}
