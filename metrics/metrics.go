// Package metrics counts token lifecycle outcomes for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "token_authority"

// Outcome label values.
const (
	OutcomeReused    = "reused"
	OutcomeMinted    = "minted"
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
	OutcomeConsumed  = "already_consumed"
	OutcomeExpired   = "expired"
	OperationRequest = "request"
	OperationConsume = "consume"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	logins       *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	actionTokens *prometheus.CounterVec
}

// New creates the counters and registers them with registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Logins by outcome: reused, minted or failed",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Access token refreshes by outcome",
		}, []string{"outcome"}),
		actionTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_tokens_total",
			Help:      "Action token requests and consumptions by purpose and outcome",
		}, []string{"purpose", "operation", "outcome"}),
	}

	registry.MustRegister(m.logins, m.refreshes, m.actionTokens)
	return m
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ActionToken(purpose, operation, outcome string) {
	if m == nil {
		return
	}
	m.actionTokens.WithLabelValues(purpose, operation, outcome).Inc()
}
