package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Collector manages application-wide counters. All counters are monotonic
// and safe for concurrent use.
type Collector struct {
	startTime         time.Time
	messagesReceived  uint64
	messagesProcessed uint64
	messagesDropped   uint64
	rulesMatched      uint64
	actionsExecuted   uint64
	actionFailures    uint64
	errors            uint64
}

// Snapshot is a point-in-time copy of the collected counters.
type Snapshot struct {
	Uptime            time.Duration `json:"-"`
	MessagesReceived  uint64        `json:"messages_received"`
	MessagesProcessed uint64        `json:"messages_processed"`
	MessagesDropped   uint64        `json:"messages_dropped"`
	RulesMatched      uint64        `json:"rules_matched"`
	ActionsExecuted   uint64        `json:"actions_executed"`
	ActionFailures    uint64        `json:"action_failures"`
	Errors            uint64        `json:"errors"`
}

// NewCollector creates a new stats collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (s *Collector) IncMessagesReceived()  { atomic.AddUint64(&s.messagesReceived, 1) }
func (s *Collector) IncMessagesProcessed() { atomic.AddUint64(&s.messagesProcessed, 1) }
func (s *Collector) IncMessagesDropped()   { atomic.AddUint64(&s.messagesDropped, 1) }
func (s *Collector) IncRulesMatched()      { atomic.AddUint64(&s.rulesMatched, 1) }
func (s *Collector) IncActionsExecuted()   { atomic.AddUint64(&s.actionsExecuted, 1) }
func (s *Collector) IncActionFailures()    { atomic.AddUint64(&s.actionFailures, 1) }
func (s *Collector) IncErrors()            { atomic.AddUint64(&s.errors, 1) }

// GetSnapshot returns current statistics
func (s *Collector) GetSnapshot() Snapshot {
	return Snapshot{
		Uptime:            time.Since(s.startTime),
		MessagesReceived:  atomic.LoadUint64(&s.messagesReceived),
		MessagesProcessed: atomic.LoadUint64(&s.messagesProcessed),
		MessagesDropped:   atomic.LoadUint64(&s.messagesDropped),
		RulesMatched:      atomic.LoadUint64(&s.rulesMatched),
		ActionsExecuted:   atomic.LoadUint64(&s.actionsExecuted),
		ActionFailures:    atomic.LoadUint64(&s.actionFailures),
		Errors:            atomic.LoadUint64(&s.errors),
	}
}

// GetSnapshotJSON returns stats as JSON
func (s *Collector) GetSnapshotJSON() ([]byte, error) {
	return json.Marshal(s.GetSnapshot())
}

// CalculateRate calculates the message processing rate per second
func (s *Collector) CalculateRate() float64 {
	uptime := time.Since(s.startTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.messagesProcessed)) / uptime
}
