package dispatch

import (
	"context"
	"sync"
	"time"

	"mqtt-action-runner/internal/executor"
)

// mockRunner records execution requests and returns a canned result.
type mockRunner struct {
	mu       sync.Mutex
	requests []executor.Request
	result   executor.Result
	delay    time.Duration
	started  chan struct{}
	release  chan struct{}
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		result: executor.Result{ExitCode: 0},
	}
}

func (m *mockRunner) Execute(ctx context.Context, req executor.Request) executor.Result {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.result
}

func (m *mockRunner) executed() []executor.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]executor.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
