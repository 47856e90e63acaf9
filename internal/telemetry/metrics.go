package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// States reported by the xrboot_bootstrap_state gauge.
var knownStates = []string{"idle", "probing", "ready", "running", "failed", "faulted"}

var (
	registerOnce sync.Once

	bootstrapState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "xrboot",
			Subsystem: "bootstrap",
			Name:      "state",
			Help:      "1 for the current bootstrap state, 0 for every other state.",
		},
		[]string{"state"},
	)
	bootstrapOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrboot",
			Subsystem: "bootstrap",
			Name:      "outcomes_total",
			Help:      "Settled bootstrap probes by outcome (supported, unsupported, fault).",
		},
		[]string{"outcome"},
	)
	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "xrboot",
			Subsystem: "bootstrap",
			Name:      "probe_duration_seconds",
			Help:      "Time from issuing initialize until it settled or was abandoned.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	reportDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrboot",
			Subsystem: "report",
			Name:      "deliveries_total",
			Help:      "Bootstrap result deliveries per reporter.",
		},
		[]string{"reporter", "success"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "xrboot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "xrboot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// RegisterMetrics registers all collectors with the default registry once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			bootstrapState,
			bootstrapOutcomes,
			probeDuration,
			reportDeliveries,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordState marks state as the current bootstrap state.
func RecordState(state string) {
	RegisterMetrics()
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		bootstrapState.WithLabelValues(s).Set(v)
	}
}

func RecordOutcome(outcome string) {
	RegisterMetrics()
	bootstrapOutcomes.WithLabelValues(outcome).Inc()
}

func RecordProbeDuration(d time.Duration) {
	RegisterMetrics()
	probeDuration.Observe(d.Seconds())
}

func RecordReport(reporter string, success bool) {
	RegisterMetrics()
	reportDeliveries.WithLabelValues(reporter, strconv.FormatBool(success)).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
