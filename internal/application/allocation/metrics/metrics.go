package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for lot reconciliation and the payment ledger.
type Metrics struct {
	// Reconciliation outcomes by branch (settled, unpaid, partial, empty)
	ReconcileOutcome *prometheus.CounterVec

	// Lot status transitions written by reconciliation
	LotTransitions *prometheus.CounterVec

	ReconcileLatency prometheus.Histogram

	// Payments accepted / rejected by the ledger
	Payments *prometheus.CounterVec
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReconcileOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siglo_reconcile_outcomes_total",
			Help: "Reconciliation runs by algorithm branch",
		}, []string{"outcome"}),

		LotTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siglo_lot_status_transitions_total",
			Help: "Lot status changes written by reconciliation",
		}, []string{"from", "to"}),

		ReconcileLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "siglo_reconcile_duration_seconds",
			Help:    "Duration of a single purchase reconciliation including persistence",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		Payments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siglo_ledger_payments_total",
			Help: "Payment registrations by result",
		}, []string{"result"}), // accepted, invalid_amount, exceeds_balance
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.ReconcileOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.LotTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) ObserveReconcileLatency(d time.Duration) {
	if m != nil {
		m.ReconcileLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPayment(result string) {
	if m != nil {
		m.Payments.WithLabelValues(result).Inc()
	}
}
