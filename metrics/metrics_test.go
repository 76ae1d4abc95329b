package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-token-authority/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	m.Login(metrics.OutcomeMinted)
	m.Login(metrics.OutcomeReused)
	m.Login(metrics.OutcomeReused)
	m.Refresh(metrics.OutcomeSuccess)
	m.ActionToken("activation", metrics.OperationConsume, metrics.OutcomeConsumed)

	count, err := testutil.GatherAndCount(registry, "token_authority_logins_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one series per outcome")

	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += "," + label.GetValue()
			}
			values[key] = metric.GetCounter().GetValue()
		}
	}
	require.Equal(t, 2.0, values["token_authority_logins_total,reused"])
	require.Equal(t, 1.0, values["token_authority_logins_total,minted"])
	require.Equal(t, 1.0, values["token_authority_refreshes_total,success"])
	require.Equal(t, 1.0, values["token_authority_action_tokens_total,consume,already_consumed,activation"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Login(metrics.OutcomeMinted)
		m.Refresh(metrics.OutcomeFailed)
		m.ActionToken("activation", metrics.OperationRequest, metrics.OutcomeSuccess)
	})
}
