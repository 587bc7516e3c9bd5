package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Task lifecycle metrics
	SubmissionsTotal *prometheus.CounterVec
	PollsTotal       *prometheus.CounterVec
	PollDuration     *prometheus.HistogramVec
	TransitionsTotal *prometheus.CounterVec
	ActivePollers    prometheus.Gauge

	// Recovery metrics
	ProbesTotal     *prometheus.CounterVec
	RecoveriesTotal *prometheus.CounterVec

	// Provider metrics
	ProviderBreakerState *prometheus.GaugeVec
}

// New creates a new Metrics instance registered on reg. A nil reg uses the
// default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "mediagen"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Task lifecycle metrics
		SubmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "submissions_total",
				Help:      "Total number of generation submissions",
			},
			[]string{"media_type", "outcome"}, // outcome: accepted, rejected
		),
		PollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "polls_total",
				Help:      "Total number of provider status polls",
			},
			[]string{"media_type", "outcome"}, // outcome: ok, transport_error, auth_error
		),
		PollDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "poll_duration_seconds",
				Help:      "Provider status poll duration in seconds, retries included",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"media_type"},
		),
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "transitions_total",
				Help:      "Total number of task state changes by resulting status",
			},
			[]string{"media_type", "status"},
		),
		ActivePollers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "active_pollers",
				Help:      "Number of tasks with a running scheduler",
			},
		),

		// Recovery metrics
		ProbesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recovery",
				Name:      "probes_total",
				Help:      "Total number of candidate URL probes",
			},
			[]string{"candidate", "result"}, // result: valid, invalid
		),
		RecoveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recovery",
				Name:      "attempts_total",
				Help:      "Total number of recovery attempts",
			},
			[]string{"source", "result"}, // source: task_id, url; result: recovered, exhausted
		),

		// Provider metrics
		ProviderBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per vendor (0=closed, 1=half-open, 2=open)",
			},
			[]string{"vendor"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSubmission records a submission outcome.
func (m *Metrics) RecordSubmission(mediaType string, accepted bool) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.SubmissionsTotal.WithLabelValues(mediaType, outcome).Inc()
}

// RecordPoll records one status poll.
func (m *Metrics) RecordPoll(mediaType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(mediaType, outcome).Inc()
	m.PollDuration.WithLabelValues(mediaType).Observe(duration.Seconds())
}

// RecordTransition records a task state change.
func (m *Metrics) RecordTransition(mediaType, status string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(mediaType, status).Inc()
}

// AddActivePollers adjusts the running scheduler gauge.
func (m *Metrics) AddActivePollers(delta float64) {
	if m == nil {
		return
	}
	m.ActivePollers.Add(delta)
}

// RecordProbe records a candidate URL probe.
func (m *Metrics) RecordProbe(candidate string, valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.ProbesTotal.WithLabelValues(candidate, result).Inc()
}

// RecordRecovery records a recovery attempt.
func (m *Metrics) RecordRecovery(source string, recovered bool) {
	if m == nil {
		return
	}
	result := "exhausted"
	if recovered {
		result = "recovered"
	}
	m.RecoveriesTotal.WithLabelValues(source, result).Inc()
}

// SetBreakerState sets the breaker state gauge of a vendor.
func (m *Metrics) SetBreakerState(vendor string, state int) {
	if m == nil {
		return
	}
	m.ProviderBreakerState.WithLabelValues(vendor).Set(float64(state))
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
