package reactor

import (
	"context"
	"sync"
	"time"
)

// AsyncChannel is the MPMC intake path for events originating off the
// scheduler goroutine: physical actions scheduled from arbitrary
// threads, or a shutdown request from a signal handler.
// It is unbounded and non-blocking for producers: Send never blocks no
// matter how many events are pending. The scheduler is the sole consumer,
// draining it into the EventQueue at the top of every loop iteration and
// otherwise waiting on it with a timeout for wall-clock synchronization.
type AsyncChannel struct {
	mu     sync.Mutex
	queue  []*ScheduledEvent
	signal chan struct{} // buffered 1: "something changed, re-check the queue"
	closed bool
}

// NewAsyncChannel constructs an empty, open channel.
func NewAsyncChannel() *AsyncChannel {
	return &AsyncChannel{signal: make(chan struct{}, 1)}
}

func (c *AsyncChannel) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Send enqueues evt. Never blocks. A Send after Close is silently
// dropped: the channel has already committed to shutting down.
func (c *AsyncChannel) Send(evt *ScheduledEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, evt)
	c.mu.Unlock()
	c.wake()
}

// Close marks the channel closed and wakes any pending waiter; pending
// queued events are still drainable afterward.
func (c *AsyncChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()
}

// Closed reports whether Close has been called.
func (c *AsyncChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// DrainInto moves every currently-queued event into q and returns how
// many were moved. Called at the top of every scheduler loop iteration
//.
func (c *AsyncChannel) DrainInto(q *EventQueue) int {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, evt := range pending {
		q.Push(evt)
	}
	return len(pending)
}

// Len reports the number of events currently queued but not yet drained.
func (c *AsyncChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// WaitSignal blocks until either an event arrives, the channel is closed,
// timeout elapses, or ctx is cancelled, whichever comes first, and
// reports whether it returned because something arrived/closed (true) as
// opposed to a plain timeout (false). This is the single primitive both
// wall-clock synchronization and the keep_alive idle wait are built from.
func (c *AsyncChannel) WaitSignal(ctx context.Context, timeout time.Duration) bool {
	if c.Len() > 0 || c.Closed() {
		return true
	}
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case <-c.signal:
		return true
	case <-timeoutCh:
		return false
	case <-ctx.Done():
		return false
	}
}
