package metrics

import (
	"time"

	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
)

// Collector periodically samples a Pool and Queue's point-in-time
// collection sizes into the WorkspacesTotal and QueueDepth gauges. Counters
// and histograms are updated directly at the call sites that produce them
// (worker, reconciler); gauges reflecting "how many are in state X right
// now" are cheaper to sample on an interval than to keep perfectly in sync
// on every mutation.
type Collector struct {
	pool   *pool.Pool
	queue  *queue.Queue
	stopCh chan struct{}
}

// NewCollector creates a Collector bound to p and q.
func NewCollector(p *pool.Pool, q *queue.Queue) *Collector {
	return &Collector{
		pool:   p,
		queue:  q,
		stopCh: make(chan struct{}),
	}
}

// Start begins sampling on a 15s interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkspaceMetrics()
	c.collectQueueMetrics()
}

func (c *Collector) collectWorkspaceMetrics() {
	status := c.pool.GetStatus()
	WorkspacesTotal.WithLabelValues("free").Set(float64(status.Free))
	WorkspacesTotal.WithLabelValues("busy").Set(float64(status.Busy))
	WorkspacesTotal.WithLabelValues("error").Set(float64(status.Error))
}

func (c *Collector) collectQueueMetrics() {
	status := c.queue.GetStatus()
	QueueDepth.WithLabelValues("pending").Set(float64(status.Pending))
	QueueDepth.WithLabelValues("running").Set(float64(status.Running))
	QueueDepth.WithLabelValues("completed").Set(float64(status.Completed))
	QueueDepth.WithLabelValues("failed").Set(float64(status.Failed))
}
