// Package metrics exposes prometheus instrumentation for the action runner.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all prometheus collectors for the service
type Metrics struct {
	messagesTotal    *prometheus.CounterVec
	ruleMatches      prometheus.Counter
	actionsTotal     *prometheus.CounterVec
	actionDuration   prometheus.Histogram
	brokerConnected  prometheus.Gauge
	brokerReconnects prometheus.Counter
	rulesActive      prometheus.Gauge
	queueDepth       prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	processRate      prometheus.Gauge
}

// NewMetrics creates and registers all collectors with the given registerer
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionrunner_messages_total",
			Help: "Messages handled, partitioned by status (received, processed, dropped, error)",
		}, []string{"status"}),
		ruleMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actionrunner_rule_matches_total",
			Help: "Number of topic lookups that matched at least one rule",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionrunner_actions_total",
			Help: "Action executions, partitioned by outcome (success, failure, timeout)",
		}, []string{"status"}),
		actionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actionrunner_action_duration_seconds",
			Help:    "Wall-clock duration of action executions",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionrunner_broker_connected",
			Help: "Whether the broker connection is currently established (1/0)",
		}),
		brokerReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actionrunner_broker_reconnects_total",
			Help: "Number of broker reconnection attempts",
		}),
		rulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionrunner_rules_active",
			Help: "Number of rules currently loaded in the index",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionrunner_execution_queue_depth",
			Help: "Number of pending action executions in the dispatch queue",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionrunner_uptime_seconds",
			Help: "Seconds since the service started",
		}),
		processRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionrunner_messages_per_second",
			Help: "Average message processing rate since start",
		}),
	}

	collectors := []prometheus.Collector{
		m.messagesTotal,
		m.ruleMatches,
		m.actionsTotal,
		m.actionDuration,
		m.brokerConnected,
		m.brokerReconnects,
		m.rulesActive,
		m.queueDepth,
		m.uptimeSeconds,
		m.processRate,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// IncMessagesTotal increments the message counter for a status
func (m *Metrics) IncMessagesTotal(status string) {
	m.messagesTotal.WithLabelValues(status).Inc()
}

// IncRuleMatches increments the rule match counter
func (m *Metrics) IncRuleMatches() {
	m.ruleMatches.Inc()
}

// IncActionsTotal increments the action counter for an outcome
func (m *Metrics) IncActionsTotal(status string) {
	m.actionsTotal.WithLabelValues(status).Inc()
}

// ObserveActionDuration records an action execution duration in seconds
func (m *Metrics) ObserveActionDuration(seconds float64) {
	m.actionDuration.Observe(seconds)
}

// SetBrokerConnectionStatus sets the broker connection gauge
func (m *Metrics) SetBrokerConnectionStatus(connected bool) {
	if connected {
		m.brokerConnected.Set(1)
	} else {
		m.brokerConnected.Set(0)
	}
}

// IncBrokerReconnects increments the reconnect counter
func (m *Metrics) IncBrokerReconnects() {
	m.brokerReconnects.Inc()
}

// SetRulesActive sets the active rule gauge
func (m *Metrics) SetRulesActive(count float64) {
	m.rulesActive.Set(count)
}

// SetQueueDepth sets the execution queue depth gauge
func (m *Metrics) SetQueueDepth(depth float64) {
	m.queueDepth.Set(depth)
}
