package events

import (
	"context"
	"sync"
	"time"

	"livebid/utils"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRetryInterval is used by Run when no interval is given
	DefaultRetryInterval = 2 * time.Second
	// DefaultHighWater is the per-sink backlog that triggers a warning
	DefaultHighWater = 10000
)

type sinkQueue struct {
	name string
	sink Sink
	wake chan struct{}

	// flushMu admits one publisher at a time so a sink sees its queue in order
	flushMu sync.Mutex

	mu        sync.Mutex
	pending   []Event
	highWater int
	alerted   bool
}

// Outbox delivers committed events to every registered sink. Each sink owns
// a FIFO queue drained by its own loop in Run: a failed publish keeps the
// event and everything behind it queued for that sink only, so other sinks
// never see duplicates. Commit never waits on a sink.
type Outbox struct {
	queues    []*sinkQueue
	highWater int
}

// OutboxOption configures an Outbox
type OutboxOption func(*Outbox)

// WithHighWater sets the per-sink backlog above which a warning is logged.
// Events are never dropped.
func WithHighWater(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.highWater = n
		}
	}
}

// NewOutbox creates an empty Outbox
func NewOutbox(opts ...OutboxOption) *Outbox {
	o := &Outbox{highWater: DefaultHighWater}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds a named sink. Register all sinks before events flow.
func (o *Outbox) Register(name string, sink Sink) {
	o.queues = append(o.queues, &sinkQueue{
		name:      name,
		sink:      sink,
		wake:      make(chan struct{}, 1),
		highWater: o.highWater,
	})
}

// Enqueue queues committed events for every sink and wakes their loops
func (o *Outbox) Enqueue(evts ...Event) {
	if len(evts) == 0 {
		return
	}
	for _, q := range o.queues {
		q.push(evts)
	}
}

// Commit enqueues a committed batch. Delivery happens in Run or Flush.
func (o *Outbox) Commit(b *Batch) {
	if b == nil || b.Len() == 0 {
		return
	}
	o.Enqueue(b.events...)
}

// Flush publishes queued events in order on the calling goroutine. It returns
// the number of events still pending across all sinks.
func (o *Outbox) Flush(ctx context.Context) int {
	remaining := 0
	for _, q := range o.queues {
		remaining += q.flush(ctx)
	}
	return remaining
}

// Pending returns the number of undelivered events across all sinks
func (o *Outbox) Pending() int {
	n := 0
	for _, q := range o.queues {
		n += q.len()
	}
	return n
}

// Backlog returns the undelivered events per sink name
func (o *Outbox) Backlog() map[string]int {
	out := make(map[string]int, len(o.queues))
	for _, q := range o.queues {
		out[q.name] = q.len()
	}
	return out
}

// Run drains every sink on its own goroutine until ctx is cancelled. A sink
// is flushed when events arrive and retried every interval while it has a
// backlog.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range o.queues {
		g.Go(func() error {
			q.loop(gctx, interval)
			return nil
		})
	}
	return g.Wait()
}

func (q *sinkQueue) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
			if q.len() == 0 {
				continue
			}
		}
		q.flush(ctx)
	}
}

func (q *sinkQueue) push(evts []Event) {
	q.mu.Lock()
	q.pending = append(q.pending, evts...)
	depth := len(q.pending)
	crossed := !q.alerted && depth >= q.highWater
	if crossed {
		q.alerted = true
	}
	q.mu.Unlock()

	if crossed {
		utils.Warn("outbox: sink backlog above high water", map[string]any{
			"sink":       q.name,
			"pending":    depth,
			"high_water": q.highWater,
		})
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *sinkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// flush publishes from the head of the queue without holding q.mu, so
// producers keep enqueueing while a slow sink is called.
func (q *sinkQueue) flush(ctx context.Context) int {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	for ctx.Err() == nil {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			break
		}
		e, depth := q.pending[0], len(q.pending)
		q.mu.Unlock()

		if err := q.sink.Publish(ctx, e); err != nil {
			utils.Warn("outbox: publish failed, will retry", map[string]any{
				"sink":    q.name,
				"event":   describe(e),
				"pending": depth,
				"error":   err.Error(),
			})
			break
		}

		q.mu.Lock()
		q.pending[0] = nil
		q.pending = q.pending[1:]
		if q.alerted && len(q.pending) < q.highWater/2 {
			q.alerted = false
			utils.Info("outbox: sink backlog drained", map[string]any{"sink": q.name, "pending": len(q.pending)})
		}
		q.mu.Unlock()
	}
	return q.len()
}
