package fermata

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal holds the process-internal prometheus collectors.
// Everything registers on a private registry so multiple instances
// never collide on the global default.
type StatsInternal struct {
	registry *prometheus.Registry
	www      *prometheus.CounterVec
	sessions prometheus.Counter
	phases   prometheus.Counter
	cycles   prometheus.Counter
	patterns *prometheus.CounterVec
	ticks    prometheus.Histogram
}

// NewStatsInternal builds and registers all collectors
func NewStatsInternal() *StatsInternal {
	s := &StatsInternal{
		registry: prometheus.NewRegistry(),
		www: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fermata",
			Name:      "http_requests_total",
			Help:      "API responses by status code and method.",
		}, []string{"status", "method"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fermata",
			Name:      "sessions_completed_total",
			Help:      "Sessions that ran their full configured length.",
		}),
		phases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fermata",
			Name:      "phase_changes_total",
			Help:      "Phase transitions fired by the cycle engine.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fermata",
			Name:      "cycle_resets_total",
			Help:      "Cycle wraps back to the first phase.",
		}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fermata",
			Name:      "pattern_selections_total",
			Help:      "Pattern switches by pattern ID.",
		}, []string{"pattern"}),
		ticks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fermata",
			Name:      "tick_seconds",
			Help:      "Wall time spent in a single engine advance.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
	}

	s.registry.MustRegister(s.www, s.sessions, s.phases, s.cycles, s.patterns, s.ticks)

	return s
}

// Handler serves the private registry, used by the /metrics endpoint
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RecWWW counts one API response by status code and HTTP method
func (s *StatsInternal) RecWWW(status, method string) {
	s.www.WithLabelValues(status, method).Inc()
}

// RecTick observes how long one engine advance took
func (s *StatsInternal) RecTick(seconds float64) {
	s.ticks.Observe(seconds)
}

func (s *StatsInternal) RecSession() {
	s.sessions.Inc()
}

func (s *StatsInternal) RecPhase() {
	s.phases.Inc()
}

func (s *StatsInternal) RecCycle() {
	s.cycles.Inc()
}

func (s *StatsInternal) RecPattern(id string) {
	s.patterns.WithLabelValues(id).Inc()
}
