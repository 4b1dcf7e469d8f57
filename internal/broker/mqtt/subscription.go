package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const subscribeTimeout = 5 * time.Second

// subscriptionManager tracks the configured topic filters and restores
// them after reconnection.
type subscriptionManager struct {
	broker     *Broker
	mu         sync.Mutex
	filters    []string
	subscribed bool
}

func newSubscriptionManager(b *Broker) *subscriptionManager {
	return &subscriptionManager{broker: b}
}

// subscribe records the filters and subscribes to each of them.
func (s *subscriptionManager) subscribe(filters []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = append([]string(nil), filters...)
	return s.subscribeLocked()
}

func (s *subscriptionManager) subscribeLocked() error {
	for _, filter := range s.filters {
		token := s.broker.conn.client.Subscribe(filter, 0, s.handleMessage)
		if !token.WaitTimeout(subscribeTimeout) {
			return fmt.Errorf("subscription timeout for filter %s", filter)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to subscribe to filter %s: %w", filter, err)
		}
		s.broker.logger.Debug("subscribed to topic filter", "filter", filter)
	}

	s.subscribed = true
	s.broker.logger.Info("subscribed to topic filters", "count", len(s.filters))
	return nil
}

// resubscribeAll restores all filters after a reconnection. It is a no-op
// while subscriptions are intact or before any filters are configured.
func (s *subscriptionManager) resubscribeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed || len(s.filters) == 0 {
		return nil
	}
	return s.subscribeLocked()
}

// markUnsubscribed flags the subscriptions as lost with the connection.
func (s *subscriptionManager) markUnsubscribed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = false
}

// subscribedFilters returns the currently configured filters.
func (s *subscriptionManager) subscribedFilters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := make([]string, len(s.filters))
	copy(filters, s.filters)
	return filters
}

// handleMessage delivers one message into the dispatch handler. The handler
// contract guarantees it does not block the delivery loop.
func (s *subscriptionManager) handleMessage(client mqtt.Client, msg mqtt.Message) {
	atomic.AddUint64(&s.broker.stats.MessagesReceived, 1)

	s.broker.logger.Debug("message received",
		"topic", msg.Topic(),
		"payloadSize", len(msg.Payload()))

	s.broker.handler(msg.Topic(), msg.Payload())
}
