package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-action-runner/internal/metrics"
)

const resubscribeRetryDelay = 2 * time.Second

// connectionManager handles the MQTT connection lifecycle
type connectionManager struct {
	broker     *Broker
	client     mqtt.Client
	connected  atomic.Bool
	retrying   atomic.Bool
	retryDelay time.Duration
}

func newConnectionManager(b *Broker) (*connectionManager, error) {
	cm := &connectionManager{broker: b, retryDelay: resubscribeRetryDelay}

	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetUsername(b.cfg.Username).
		SetPassword(b.cfg.Password).
		SetKeepAlive(time.Duration(b.cfg.KeepAlive) * time.Second).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute)

	opts.OnConnect = cm.handleConnect
	opts.OnConnectionLost = cm.handleConnectionLost
	opts.OnReconnecting = cm.handleReconnecting

	if b.cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(b.cfg.TLS.CertFile, b.cfg.TLS.KeyFile, b.cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	cm.client = mqtt.NewClient(opts)
	return cm, nil
}

// connect establishes the initial connection, honoring the context.
func (cm *connectionManager) connect(ctx context.Context) error {
	token := cm.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cm *connectionManager) disconnect() {
	cm.broker.logger.Info("disconnecting from mqtt broker")
	cm.connected.Store(false)
	cm.client.Disconnect(250)
}

func (cm *connectionManager) isConnected() bool {
	return cm.connected.Load()
}

// handleConnect fires on every successful (re)connection. Subscriptions are
// restored before the connected flag is raised so no dispatch happens on a
// session without its filters in place.
func (cm *connectionManager) handleConnect(client mqtt.Client) {
	cm.broker.logger.Info("mqtt client connected",
		"broker", cm.broker.cfg.Broker)
	cm.broker.stats.LastReconnect = time.Now()

	if err := cm.broker.subs.resubscribeAll(); err != nil {
		cm.broker.logger.Error("failed to resubscribe after reconnect",
			"error", err)
		atomic.AddUint64(&cm.broker.stats.Errors, 1)
		// Returning here would leave the session up but deaf: paho only
		// fires OnConnect again after a transport drop. Keep retrying
		// until the filters are back or the connection is gone.
		cm.scheduleResubscribe()
		return
	}

	cm.markSubscribed()
}

// markSubscribed raises the connected flag once the session has its
// subscriptions in place.
func (cm *connectionManager) markSubscribed() {
	cm.connected.Store(true)
	cm.broker.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetBrokerConnectionStatus(true)
	})
}

// scheduleResubscribe retries the subscription setup with backoff. It gives
// up when the connection drops, since the loss handler clears the flags and
// the next OnConnect starts over. At most one retry loop runs at a time.
func (cm *connectionManager) scheduleResubscribe() {
	if !cm.retrying.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer cm.retrying.Store(false)

		delay := cm.retryDelay
		for {
			time.Sleep(delay)

			if !cm.client.IsConnectionOpen() {
				return
			}

			err := cm.broker.subs.resubscribeAll()
			if err == nil {
				cm.broker.logger.Info("subscriptions restored after retry")
				cm.markSubscribed()
				return
			}

			cm.broker.logger.Error("resubscribe retry failed",
				"error", err,
				"nextAttemptIn", (delay * 2).String())
			atomic.AddUint64(&cm.broker.stats.Errors, 1)
			if delay < time.Minute {
				delay *= 2
			}
		}
	}()
}

func (cm *connectionManager) handleConnectionLost(client mqtt.Client, err error) {
	cm.broker.logger.Error("mqtt connection lost", "error", err)
	cm.connected.Store(false)
	cm.broker.subs.markUnsubscribed()
	atomic.AddUint64(&cm.broker.stats.Errors, 1)

	cm.broker.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetBrokerConnectionStatus(false)
	})
}

func (cm *connectionManager) handleReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	cm.broker.logger.Info("mqtt client reconnecting",
		"broker", cm.broker.cfg.Broker)

	cm.broker.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncBrokerReconnects()
	})
}

// newTLSConfig creates a new TLS configuration
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
