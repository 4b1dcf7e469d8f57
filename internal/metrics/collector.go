package metrics

import (
	"sync"
	"time"

	"mqtt-action-runner/internal/stats"
)

// Collector periodically bridges the stats counters into prometheus gauges
type Collector struct {
	metrics  *Metrics
	stats    *stats.Collector
	interval time.Duration
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector
func NewCollector(m *Metrics, s *stats.Collector, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		metrics:  m,
		stats:    s,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *Collector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.update()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop halts periodic collection
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Collector) update() {
	snap := c.stats.GetSnapshot()
	c.metrics.uptimeSeconds.Set(snap.Uptime.Seconds())
	c.metrics.processRate.Set(c.stats.CalculateRate())
}
