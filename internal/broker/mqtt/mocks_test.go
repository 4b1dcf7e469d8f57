package mqtt

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mockToken implements mqtt.Token
type mockToken struct {
	err  error
	done chan struct{}
}

func newMockToken(err error) *mockToken {
	done := make(chan struct{})
	close(done)
	return &mockToken{err: err, done: done}
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{}          { return t.done }
func (t *mockToken) Error() error                   { return t.err }

// mockClient implements mqtt.Client and records subscriptions.
type mockClient struct {
	mu        sync.Mutex
	connected bool

	subscribeErr       error
	failNextSubscribes int
	subs               map[string]mqtt.MessageHandler
	subCalls           []string
}

func newMockClient() *mockClient {
	return &mockClient{
		connected: true,
		subs:      make(map[string]mqtt.MessageHandler),
	}
}

func (c *mockClient) IsConnected() bool      { return c.connected }
func (c *mockClient) IsConnectionOpen() bool { return c.connected }

func (c *mockClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return newMockToken(nil)
}

func (c *mockClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return newMockToken(nil)
}

func (c *mockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subCalls = append(c.subCalls, topic)
	if c.failNextSubscribes > 0 {
		c.failNextSubscribes--
		return newMockToken(errors.New("subscribe refused"))
	}
	if c.subscribeErr != nil {
		return newMockToken(c.subscribeErr)
	}
	c.subs[topic] = callback
	return newMockToken(nil)
}

func (c *mockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for f := range filters {
		c.subCalls = append(c.subCalls, f)
		c.subs[f] = callback
	}
	return newMockToken(nil)
}

func (c *mockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	return newMockToken(nil)
}

func (c *mockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (c *mockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (c *mockClient) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for f := range c.subs {
		out = append(out, f)
	}
	return out
}

func (c *mockClient) deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	handler, ok := c.subs[topic]
	c.mu.Unlock()
	if !ok {
		return false
	}
	handler(c, &mockMessage{topic: topic, payload: payload})
	return true
}

// mockMessage implements mqtt.Message
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
