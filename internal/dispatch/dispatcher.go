// Package dispatch routes delivered messages through the rule table and
// hands firing rules to an execution worker pool.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mqtt-action-runner/internal/executor"
	"mqtt-action-runner/internal/logger"
	"mqtt-action-runner/internal/metrics"
	"mqtt-action-runner/internal/rule"
	"mqtt-action-runner/internal/stats"
)

// Runner abstracts the action executor.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) executor.Result
}

// Config holds dispatcher configuration
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per-action wall-clock limit
}

// Dispatcher is the component the broker calls back into for every
// delivered message. Rule lookup and condition evaluation happen on the
// delivery path; execution is handed off to the worker pool so the broker's
// read loop is never blocked by a running action.
type Dispatcher struct {
	index   *rule.Index
	runner  Runner
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.Collector
	timeout time.Duration

	jobs chan job
	wg   sync.WaitGroup

	// mu orders enqueue sends against Close closing the queue: a delivery
	// that passed the early closed check may still be evaluating rules
	// when Close runs, and must not send on the closed channel.
	mu     sync.RWMutex
	closed bool
}

type job struct {
	id      string
	rule    *rule.Rule
	topic   string
	payload []byte
}

// New creates a dispatcher and starts its worker pool. The metrics service
// may be nil when metrics are disabled.
func New(cfg Config, index *rule.Index, runner Runner, log *logger.Logger, m *metrics.Metrics, s *stats.Collector) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}

	d := &Dispatcher{
		index:   index,
		runner:  runner,
		logger:  log,
		metrics: m,
		stats:   s,
		timeout: cfg.Timeout,
		jobs:    make(chan job, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// HandleMessage processes one broker delivery: match, parse, evaluate,
// enqueue. Each (message, rule) pair is handled independently; one rule's
// failure never affects another rule or message.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return
	}

	d.stats.IncMessagesReceived()
	d.safeMetrics(func(m *metrics.Metrics) { m.IncMessagesTotal("received") })

	matches := d.index.Find(topic)
	if len(matches) == 0 {
		d.logger.Debug("no rules matched",
			"topic", topic)
		d.markProcessed()
		return
	}

	d.stats.IncRulesMatched()
	d.safeMetrics(func(m *metrics.Metrics) { m.IncRuleMatches() })

	parsed := rule.ParsePayload(payload)
	if !parsed.IsObject() {
		d.logger.Debug("payload kept as opaque scalar",
			"topic", topic,
			"payloadSize", len(payload))
	}

	for _, r := range matches {
		if !r.IsEnabled() {
			d.logger.Debug("rule disabled, skipping",
				"filter", r.Topic,
				"topic", topic)
			continue
		}

		fired, reason := rule.EvaluateWithReason(r.Conditions, parsed)
		if !fired {
			d.logger.Debug("rule did not fire",
				"filter", r.Topic,
				"topic", topic,
				"reason", reason)
			continue
		}

		d.enqueue(job{
			id:      uuid.NewString(),
			rule:    r,
			topic:   topic,
			payload: payload,
		})
	}

	d.markProcessed()
}

// enqueue hands a firing rule to the worker pool. The handoff never blocks:
// when the queue is full the job is dropped and logged, back-pressure is
// the broker client's concern.
func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Debug("dispatcher closed, discarding action",
			"filter", j.rule.Topic,
			"topic", j.topic)
		return
	}

	select {
	case d.jobs <- j:
		d.logger.Info("rule fired",
			"filter", j.rule.Topic,
			"topic", j.topic,
			"script", j.rule.Script,
			"executionId", j.id)
		d.safeMetrics(func(m *metrics.Metrics) { m.SetQueueDepth(float64(len(d.jobs))) })
	default:
		d.stats.IncMessagesDropped()
		d.safeMetrics(func(m *metrics.Metrics) { m.IncMessagesTotal("dropped") })
		d.logger.Error("execution queue full, dropping action",
			"filter", j.rule.Topic,
			"topic", j.topic,
			"script", j.rule.Script)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		result := d.runner.Execute(context.Background(), executor.Request{
			ID:      j.id,
			Script:  j.rule.Script,
			Topic:   j.topic,
			Payload: j.payload,
			Timeout: d.timeout,
		})

		d.stats.IncActionsExecuted()
		status := "success"
		switch {
		case result.TimedOut:
			status = "timeout"
		case !result.Success():
			status = "failure"
		}
		if status != "success" {
			d.stats.IncActionFailures()
		}

		d.safeMetrics(func(m *metrics.Metrics) {
			m.IncActionsTotal(status)
			m.ObserveActionDuration(result.Duration.Seconds())
			m.SetQueueDepth(float64(len(d.jobs)))
		})
	}
}

func (d *Dispatcher) markProcessed() {
	d.stats.IncMessagesProcessed()
	d.safeMetrics(func(m *metrics.Metrics) { m.IncMessagesTotal("processed") })
}

// QueueDepth returns the number of pending executions.
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobs)
}

// Close stops accepting new messages and waits for in-flight executions
// until the context's grace period expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("shutdown grace period expired with executions still in flight")
		return ctx.Err()
	}
}

func (d *Dispatcher) safeMetrics(fn func(*metrics.Metrics)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}
