// Package broker defines the connection manager boundary to the pub/sub
// broker. Backends own the session lifecycle: connect, subscribe to every
// filter in the rule table, reconnect on transport failure. Reconnection
// re-subscribes every filter before delivery resumes, so no dispatch
// happens on a connection without its subscriptions in place.
package broker

import (
	"context"
	"time"
)

// MessageHandler is invoked for every delivered message. Implementations
// must not block the broker's read loop.
type MessageHandler func(topic string, payload []byte)

// Broker is a connection manager for one message broker session.
type Broker interface {
	// Start connects to the broker and subscribes to the given topic
	// filters. Delivered messages are passed to the backend's handler.
	Start(ctx context.Context, filters []string) error

	// IsConnected reports the current connection state.
	IsConnected() bool

	// Close disconnects gracefully. No messages are delivered afterwards.
	Close()
}

// Stats holds counters for a broker connection.
type Stats struct {
	MessagesReceived uint64
	LastReconnect    time.Time
	Errors           uint64
}
