// Package dedupe tracks idempotency keys so retried frames and save
// requests are applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a request that failed after being recorded
	// (e.g. rejected by a full queue) can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper evicts the oldest key once maxSize is reached; maxSize <= 0
// means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
	onEvict func(key string)
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	d.order.Remove(front)
	delete(d.seen, key)
	d.size.Add(-1)
	if d.onEvict != nil {
		d.onEvict(key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
