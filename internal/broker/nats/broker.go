// Package nats implements the broker backend on top of a NATS connection.
// MQTT-style topic filters from the rule table are translated to NATS
// subjects on subscribe and back to topics on delivery.
package nats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"mqtt-action-runner/config"
	"mqtt-action-runner/internal/broker"
	"mqtt-action-runner/internal/logger"
	"mqtt-action-runner/internal/metrics"
)

// Broker implements broker.Broker for NATS.
type Broker struct {
	cfg     *config.NATSConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	handler broker.MessageHandler

	conn  *nats.Conn
	subs  []*nats.Subscription
	stats broker.Stats
}

// NewBroker connects to the NATS server. The client library restores
// subscriptions itself on reconnect, so unlike the MQTT backend no manual
// resubscription is needed.
func NewBroker(cfg *config.NATSConfig, log *logger.Logger, m *metrics.Metrics, handler broker.MessageHandler) (*Broker, error) {
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}

	b := &Broker{
		cfg:     cfg,
		logger:  log,
		metrics: m,
		handler: handler,
	}

	opts := []nats.Option{
		nats.Name("mqtt-action-runner"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(b.handleDisconnect),
		nats.ReconnectHandler(b.handleReconnect),
		nats.ErrorHandler(b.handleError),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats server: %w", err)
	}
	b.conn = conn

	b.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetBrokerConnectionStatus(true)
	})

	return b, nil
}

// Start subscribes to every topic filter, translated to NATS subjects.
func (b *Broker) Start(ctx context.Context, filters []string) error {
	for _, filter := range filters {
		subject := ToSubject(filter)
		sub, err := b.conn.Subscribe(subject, b.handleMessage)
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
		b.logger.Debug("subscribed to subject",
			"subject", subject,
			"filter", filter)
	}

	b.logger.Info("subscribed to subjects", "count", len(b.subs))
	return nil
}

// IsConnected implements broker.Broker.
func (b *Broker) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Close drains outstanding subscriptions and closes the connection.
func (b *Broker) Close() {
	b.logger.Info("disconnecting from nats server")
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Error("failed to unsubscribe", "error", err)
		}
	}
	b.conn.Close()
}

// GetStats returns current connection counters.
func (b *Broker) GetStats() broker.Stats {
	return b.stats
}

func (b *Broker) handleMessage(msg *nats.Msg) {
	atomic.AddUint64(&b.stats.MessagesReceived, 1)

	topic := ToTopic(msg.Subject)
	b.logger.Debug("message received",
		"subject", msg.Subject,
		"topic", topic,
		"payloadSize", len(msg.Data))

	b.handler(topic, msg.Data)
}

func (b *Broker) handleDisconnect(conn *nats.Conn, err error) {
	b.logger.Error("nats connection lost", "error", err)
	atomic.AddUint64(&b.stats.Errors, 1)

	b.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetBrokerConnectionStatus(false)
	})
}

func (b *Broker) handleReconnect(conn *nats.Conn) {
	b.logger.Info("nats client reconnected", "url", conn.ConnectedUrl())
	b.stats.LastReconnect = time.Now()

	b.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetBrokerConnectionStatus(true)
		m.IncBrokerReconnects()
	})
}

func (b *Broker) handleError(conn *nats.Conn, sub *nats.Subscription, err error) {
	b.logger.Error("nats async error", "error", err)
	atomic.AddUint64(&b.stats.Errors, 1)
}

func (b *Broker) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if b.metrics != nil {
		fn(b.metrics)
	}
}
