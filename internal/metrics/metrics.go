package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics provides observability for document operations, the HTTP API
// and remote submissions.
type Metrics struct {
	// Operations by name (build, validate, sign, verify, qr_encode, ...) and outcome
	Operations *prometheus.CounterVec

	// Validation findings by rule and severity
	Findings *prometheus.CounterVec

	// HTTP request latency by route, method and status
	RequestLatency *prometheus.HistogramVec

	// Remote submission latency by endpoint and HTTP status
	SubmissionLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fatoora_operations_total",
			Help: "Document operations by name and outcome",
		}, []string{"operation", "outcome"}),

		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fatoora_validation_findings_total",
			Help: "Validation findings by business rule and severity",
		}, []string{"rule", "severity"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fatoora_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),

		SubmissionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fatoora_submission_duration_seconds",
			Help:    "Duration of calls to the e-invoicing gateway",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint", "status"}),
	}
}

// IncrementOperation records one operation outcome
func (m *Metrics) IncrementOperation(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

// IncrementFinding records one validation finding
func (m *Metrics) IncrementFinding(rule, severity string) {
	if m != nil {
		m.Findings.WithLabelValues(rule, severity).Inc()
	}
}

// ObserveRequest records the duration of an HTTP API request
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// ObserveSubmission records a gateway call. status is 0 when no response arrived.
func (m *Metrics) ObserveSubmission(endpoint string, status int, d time.Duration) {
	if m != nil {
		m.SubmissionLatency.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
