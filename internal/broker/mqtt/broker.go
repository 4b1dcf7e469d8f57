// Package mqtt implements the broker connection manager on top of the
// Eclipse Paho client.
package mqtt

import (
	"context"
	"fmt"

	"mqtt-action-runner/config"
	"mqtt-action-runner/internal/broker"
	"mqtt-action-runner/internal/logger"
	"mqtt-action-runner/internal/metrics"
)

// Broker owns the MQTT session: connection lifecycle, subscriptions and
// delivery into the dispatch handler.
type Broker struct {
	cfg     *config.MQTTConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	handler broker.MessageHandler

	conn  *connectionManager
	subs  *subscriptionManager
	stats broker.Stats
}

// NewBroker creates an MQTT broker backend. The metrics service may be nil.
func NewBroker(cfg *config.MQTTConfig, log *logger.Logger, m *metrics.Metrics, handler broker.MessageHandler) (*Broker, error) {
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}

	b := &Broker{
		cfg:     cfg,
		logger:  log,
		metrics: m,
		handler: handler,
	}
	b.subs = newSubscriptionManager(b)

	conn, err := newConnectionManager(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	b.conn = conn

	return b, nil
}

// Start connects to the broker and subscribes to every topic filter.
// Reconnections re-subscribe the same filters before delivery resumes.
func (b *Broker) Start(ctx context.Context, filters []string) error {
	if err := b.conn.connect(ctx); err != nil {
		return err
	}
	if err := b.subs.subscribe(filters); err != nil {
		return fmt.Errorf("failed to subscribe to topic filters: %w", err)
	}
	return nil
}

// IsConnected implements broker.Broker.
func (b *Broker) IsConnected() bool {
	return b.conn.isConnected()
}

// Close disconnects from the broker.
func (b *Broker) Close() {
	b.conn.disconnect()
}

// GetStats returns current connection counters.
func (b *Broker) GetStats() broker.Stats {
	return b.stats
}

// safeMetricsUpdate applies fn when metrics are enabled.
func (b *Broker) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if b.metrics != nil {
		fn(b.metrics)
	}
}
