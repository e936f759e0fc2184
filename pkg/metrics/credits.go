package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CreditMetrics records ledger and generation activity.
type CreditMetrics struct {
	deducted   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	generation *prometheus.HistogramVec
}

// NewCreditMetrics registers the credit metrics on the provided registerer.
func NewCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	if reg == nil {
		return &CreditMetrics{}
	}
	deducted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_deducted_total",
		Help: "Credits deducted from account balances.",
	}, []string{"action"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_admission_rejected_total",
		Help: "Paid actions rejected by the credit ledger.",
	}, []string{"reason"})
	generation := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of external generation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "outcome"})
	reg.MustRegister(deducted, rejected, generation)
	return &CreditMetrics{
		deducted:   deducted,
		rejected:   rejected,
		generation: generation,
	}
}

// AddDeducted adds amount to the deducted counter for action.
func (c *CreditMetrics) AddDeducted(action string, amount int) {
	if c == nil || c.deducted == nil || amount <= 0 {
		return
	}
	c.deducted.WithLabelValues(normalizeLabel(action)).Add(float64(amount))
}

// IncRejected counts one admission rejection.
func (c *CreditMetrics) IncRejected(reason string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveGeneration records how long a provider call took.
func (c *CreditMetrics) ObserveGeneration(action, outcome string, duration time.Duration) {
	if c == nil || c.generation == nil {
		return
	}
	c.generation.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
