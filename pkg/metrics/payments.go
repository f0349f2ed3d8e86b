package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts reconciliation outcomes across all delivery channels.
type PaymentMetrics struct {
	transitions *prometheus.CounterVec
	duplicates  prometheus.Counter
	ambiguous   prometheus.Counter
}

// NewPaymentMetrics registers reconciliation counters on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Terminal payment transitions by outcome and trigger.",
	}, []string{"outcome", "trigger"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_duplicate_deliveries_total",
		Help: "Terminal statuses observed after the order already converged.",
	})
	ambiguous := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_ambiguous_states_total",
		Help: "Gateway lookups that stayed ambiguous after the secondary search.",
	})
	reg.MustRegister(transitions, duplicates, ambiguous)
	return &PaymentMetrics{
		transitions: transitions,
		duplicates:  duplicates,
		ambiguous:   ambiguous,
	}
}

// IncTransition records a terminal transition for the given outcome/trigger.
func (p *PaymentMetrics) IncTransition(outcome, trigger string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(outcome), normalizeLabel(trigger)).Inc()
}

// IncDuplicate records a redundant terminal delivery.
func (p *PaymentMetrics) IncDuplicate() {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.Inc()
}

// IncAmbiguous records a gateway state that could not be resolved.
func (p *PaymentMetrics) IncAmbiguous() {
	if p == nil || p.ambiguous == nil {
		return
	}
	p.ambiguous.Inc()
}
