package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the marketplace commands and HTTP layer.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Offers submitted or revised, by outcome
	OffersSubmitted *prometheus.CounterVec

	// Adjudications by outcome
	Adjudications *prometheus.CounterVec

	// Adjudications retried after a concurrent modification
	AdjudicationRetries prometheus.Counter

	// Cost-of-funds publications
	CostOfFundsPublished prometheus.Counter

	// Invoice state transitions by target state
	InvoiceTransitions *prometheus.CounterVec

	// Command latency by command name
	CommandDuration *prometheus.HistogramVec

	// HTTP requests by route pattern, method and status
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OffersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confirming_offers_submitted_total",
			Help: "Offers submitted or revised by outcome",
		}, []string{"outcome"}), // outcome: "created", "revised", "rejected"

		Adjudications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confirming_adjudications_total",
			Help: "Adjudication attempts by outcome",
		}, []string{"outcome"}),

		AdjudicationRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "confirming_adjudication_retries_total",
			Help: "Adjudications retried after a concurrent modification",
		}),

		CostOfFundsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "confirming_cost_of_funds_published_total",
			Help: "Daily cost-of-funds publications",
		}),

		InvoiceTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confirming_invoice_transitions_total",
			Help: "Invoice state transitions by target state",
		}, []string{"state"}),

		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confirming_command_duration_seconds",
			Help:    "Duration of marketplace commands",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confirming_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confirming_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// IncOffer records an offer submission outcome
func (m *Metrics) IncOffer(outcome string) {
	if m != nil {
		m.OffersSubmitted.WithLabelValues(outcome).Inc()
	}
}

// IncAdjudication records an adjudication outcome
func (m *Metrics) IncAdjudication(outcome string) {
	if m != nil {
		m.Adjudications.WithLabelValues(outcome).Inc()
	}
}

// IncAdjudicationRetry records a retried adjudication
func (m *Metrics) IncAdjudicationRetry() {
	if m != nil {
		m.AdjudicationRetries.Inc()
	}
}

// IncCostOfFundsPublished records a publication
func (m *Metrics) IncCostOfFundsPublished() {
	if m != nil {
		m.CostOfFundsPublished.Inc()
	}
}

// IncTransition records an invoice reaching state
func (m *Metrics) IncTransition(state string) {
	if m != nil {
		m.InvoiceTransitions.WithLabelValues(state).Inc()
	}
}

// ObserveCommand records how long a command took
func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	if m != nil {
		m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// ObserveHTTP records a served request
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, method, status).Inc()
		m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
	}
}
