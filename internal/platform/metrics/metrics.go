package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bapauth"

// Error categories used by the signup and account flows.
const (
	CategoryAPI        = "api"
	CategoryNetwork    = "network"
	CategoryCrypto     = "crypto"
	CategoryStorage    = "storage"
	CategoryValidation = "validation"
	CategoryConflict   = "conflict"
)

// Recorder holds the flow collectors. A nil *Recorder is a no-op so tests and
// library callers can skip metrics entirely.
type Recorder struct {
	transitions    *prometheus.CounterVec
	errors         *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	linkWarnings   prometheus.Counter
}

// New registers the collectors on reg. Passing nil uses a private registry.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signup",
			Name:      "transitions_total",
			Help:      "State machine transitions by source and target state.",
		}, []string{"from", "to"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Flow errors by category.",
		}, []string{"category"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency by endpoint and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		linkWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signup",
			Name:      "oauth_link_warnings_total",
			Help:      "OAuth backup stores that failed without a conflict.",
		}),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.errors, r.backendLatency, r.linkWarnings} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Transition(from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *Recorder) Error(category string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(category).Inc()
}

func (r *Recorder) LinkWarning() {
	if r == nil {
		return
	}
	r.linkWarnings.Inc()
}

// ObserveBackend records one backend round trip. outcome is "ok", "error" or
// an HTTP status class such as "4xx".
func (r *Recorder) ObserveBackend(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.backendLatency.WithLabelValues(endpoint, outcome).Observe(elapsed.Seconds())
}
