package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.IncMessagesReceived()
	c.IncMessagesReceived()
	c.IncMessagesProcessed()
	c.IncRulesMatched()
	c.IncActionsExecuted()
	c.IncActionFailures()
	c.IncMessagesDropped()
	c.IncErrors()

	snap := c.GetSnapshot()
	assert.Equal(t, uint64(2), snap.MessagesReceived)
	assert.Equal(t, uint64(1), snap.MessagesProcessed)
	assert.Equal(t, uint64(1), snap.RulesMatched)
	assert.Equal(t, uint64(1), snap.ActionsExecuted)
	assert.Equal(t, uint64(1), snap.ActionFailures)
	assert.Equal(t, uint64(1), snap.MessagesDropped)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.GreaterOrEqual(t, snap.Uptime.Nanoseconds(), int64(0))
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncMessagesReceived()
				c.IncActionsExecuted()
			}
		}()
	}
	wg.Wait()

	snap := c.GetSnapshot()
	assert.Equal(t, uint64(1000), snap.MessagesReceived)
	assert.Equal(t, uint64(1000), snap.ActionsExecuted)
}

func TestGetSnapshotJSON(t *testing.T) {
	c := NewCollector()
	c.IncMessagesReceived()

	data, err := c.GetSnapshotJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"messages_received":1`)
}

func TestCalculateRate(t *testing.T) {
	c := NewCollector()
	assert.GreaterOrEqual(t, c.CalculateRate(), float64(0))
	c.IncMessagesProcessed()
	assert.GreaterOrEqual(t, c.CalculateRate(), float64(0))
}
