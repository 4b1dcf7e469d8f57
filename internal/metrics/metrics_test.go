package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mqtt-action-runner/internal/stats"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.IncMessagesTotal("received")
	m.IncMessagesTotal("received")
	m.IncMessagesTotal("processed")
	m.IncRuleMatches()
	m.IncBrokerReconnects()
	m.IncActionsTotal("success")
	m.IncActionsTotal("failure")
	m.IncActionsTotal("timeout")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.messagesTotal.WithLabelValues("received")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.messagesTotal.WithLabelValues("processed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ruleMatches))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.actionsTotal.WithLabelValues("timeout")))
}

func TestMetricsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.SetBrokerConnectionStatus(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.brokerConnected))

	m.SetBrokerConnectionStatus(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.brokerConnected))

	m.SetRulesActive(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.rulesActive))

	m.SetQueueDepth(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.queueDepth))
}

func TestCollectorUpdates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	s := stats.NewCollector()
	s.IncMessagesProcessed()

	c := NewCollector(m, s, 10*time.Millisecond)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.uptimeSeconds) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestCollectorStopIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	c := NewCollector(m, stats.NewCollector(), time.Second)
	c.Start()
	c.Stop()
	c.Stop()
}
