// Package queue buffers submitted landmark frames between the HTTP handlers
// and the worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/metrics"
)

const defaultQueueCapacity = 4096

// Event is the payload flowing through the queue.
type Event = model.FrameEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel receiving events in enqueue order. The
	// channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.report(0)
	return q
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds an event without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		q.reject("context_cancelled")
		return false
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.report(len(q.events))
		return true
	default:
		q.reject("queue_full")
		return false
	}
}

// Dequeue returns a channel that receives events as they become available.
// Only one consumer should call Dequeue; the worker dispatcher is that consumer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-q.events:
				if !ok {
					return
				}
				select {
				case out <- e:
					metrics.RecordQueueDequeue()
					q.report(len(q.events))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.events)
	q.report(n)
	return n
}

// Close stops accepting events. Queued events are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) report(size int) {
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
