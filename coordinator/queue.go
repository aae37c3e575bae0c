package coordinator

import (
	"sync"

	"github.com/jacentio/devicekv/replica"
)

// CompletionQueue holds callbacks waiting for the next sync completion.
// It is safe for concurrent use.
type CompletionQueue struct {
	mu      sync.Mutex
	pending []Callback
}

// Enqueue appends cb. Callbacks are not deduplicated and the queue is unbounded.
func (q *CompletionQueue) Enqueue(cb Callback) {
	if cb == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cb)
	q.mu.Unlock()
}

// Drain removes and returns every queued callback in enqueue order.
func (q *CompletionQueue) Drain() []Callback {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()
	return drained
}

// Len returns the number of queued callbacks.
func (q *CompletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// AwaitSync queues cb to run on the next syncComplete event, whichever sync
// round produced it. cb always receives true. A nil cb is ignored.
func (c *Coordinator) AwaitSync(cb Callback) {
	c.queue.Enqueue(cb)
}

// handleSyncComplete drains the queue and releases every waiter.
func (c *Coordinator) handleSyncComplete(result replica.SyncResult) {
	results := make(map[string]string, len(result))
	for device, status := range result {
		results[device] = status.String()
	}
	c.logger.Info("sync complete",
		"event", replica.EventSyncComplete,
		"results", results,
		"pending", c.queue.Len(),
	)

	callbacks := c.queue.Drain()
	if len(callbacks) == 0 {
		c.logger.Debug("no pending sync callbacks")
		return
	}

	for i, cb := range callbacks {
		c.logger.Debug("releasing sync callback",
			"index", i+1,
			"total", len(callbacks),
		)
		cb(true)
	}
}
