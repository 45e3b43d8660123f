package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles every instrument the daemon exports. Components receive the Set
// at construction and update their own instruments; the admin server mounts
// Handler() at /metrics.
type Set struct {
	registry *prometheus.Registry

	ChecksTotal        prometheus.Counter
	CheckFailuresTotal prometheus.Counter
	ProbesInFlight     prometheus.Gauge

	AlertsTotal *prometheus.CounterVec // label: kind = down | recovered | bench_threshold

	QueueEnqueued prometheus.Counter
	QueueSent     prometheus.Counter
	QueueRetried  prometheus.Counter
	QueueDropped  prometheus.Counter
	QueueDepth    prometheus.Gauge

	BenchSamples       prometheus.Counter
	BenchParseFailures prometheus.Counter
}

// New creates a Set backed by its own registry, so multiple Sets (tests,
// embedded use) never collide on registration.
func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		ChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Name: "checks_total",
			Help: "Reachability probes completed.",
		}),
		CheckFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Name: "check_failures_total",
			Help: "Reachability probes that failed, including resolution failures.",
		}),
		ProbesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchpost", Name: "probes_in_flight",
			Help: "Probes currently running or waiting for a concurrency slot.",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchpost", Name: "alerts_total",
			Help: "Alert events emitted, by kind.",
		}, []string{"kind"}),
		QueueEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "queue", Name: "enqueued_total",
			Help: "Messages accepted into the delivery queue.",
		}),
		QueueSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "queue", Name: "sent_total",
			Help: "Messages delivered to the sink.",
		}),
		QueueRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "queue", Name: "retried_total",
			Help: "Delivery attempts retried after a transient failure.",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "queue", Name: "dropped_total",
			Help: "Messages dropped: queue full, permanent failure, or retries exhausted.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchpost", Subsystem: "queue", Name: "depth",
			Help: "Messages waiting in the delivery queue.",
		}),
		BenchSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "bench", Name: "samples_total",
			Help: "Benchmark samples normalized and recorded.",
		}),
		BenchParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchpost", Subsystem: "bench", Name: "parse_failures_total",
			Help: "Benchmark responses skipped because no known shape matched.",
		}),
	}

	s.registry.MustRegister(
		s.ChecksTotal, s.CheckFailuresTotal, s.ProbesInFlight,
		s.AlertsTotal,
		s.QueueEnqueued, s.QueueSent, s.QueueRetried, s.QueueDropped, s.QueueDepth,
		s.BenchSamples, s.BenchParseFailures,
	)
	return s
}

// Handler returns the /metrics endpoint for this Set's registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
