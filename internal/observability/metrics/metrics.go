package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics carries the billing counters exposed on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	ChargesTotal     *prometheus.CounterVec
	CreditsCharged   prometheus.Counter
	DebitConflicts   prometheus.Counter
	PaymentEvents    *prometheus.CounterVec
	GuardrailAborts  *prometheus.CounterVec
	NotifierFailures prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: registry,
		ChargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_charges_total",
			Help: "Billable charges by outcome.",
		}, []string{"outcome"}),
		CreditsCharged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_credits_charged_total",
			Help: "Total credits debited from wallets.",
		}),
		DebitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_debit_conflicts_total",
			Help: "Conditional debits that matched zero rows.",
		}),
		PaymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payment_events_total",
			Help: "Payment settlement events by type.",
		}, []string{"event"}),
		GuardrailAborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_guardrail_aborts_total",
			Help: "Guardrail aborts by limit.",
		}, []string{"limit"}),
		NotifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_notifier_failures_total",
			Help: "Best-effort balance notifications that failed.",
		}),
	}

	registry.MustRegister(
		m.ChargesTotal,
		m.CreditsCharged,
		m.DebitConflicts,
		m.PaymentEvents,
		m.GuardrailAborts,
		m.NotifierFailures,
	)

	return m
}
