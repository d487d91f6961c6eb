// Package worker folds queued frames into their sessions. Each session is
// pinned to one worker so its frames are processed in submission order.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/okian/combatpower/pkg/logger"
	"github.com/okian/combatpower/pkg/metrics"
)

const (
	defaultInboxSize    = 64
	poolShutdownTimeout = 30 * time.Second
)

// Event is what workers receive.
type Event = model.FrameEvent

// Processor folds one frame. Implementations must tolerate being called from
// several workers at once, but never for the same session concurrently.
type Processor interface {
	Process(ctx context.Context, e Event) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, e Event) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, e Event) error { return f(ctx, e) } //nolint:gocritic // hugeParam

// Queue defines how the pool receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker processes the events routed to its inbox.
type InMemoryWorker struct {
	name      string
	inbox     chan Event
	processor Processor
	done      chan struct{}
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker reading from its own inbox.
func NewInMemoryWorker(processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		name:      "worker",
		processor: processor,
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	inbox := defaultInboxSize
	for _, opt := range opts {
		opt(w)
	}
	if w.inbox == nil {
		w.inbox = make(chan Event, inbox)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes the inbox until it is closed. Cancelling ctx abandons the
// remaining events.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.inbox:
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Warn(ctx, "frame dropped",
					logger.String("session_id", e.SessionID),
					logger.Int64("seq", e.Seq),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.processor.Process(ctx, e); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process")
		return fmt.Errorf("process frame %d of %s: %w", e.Seq, e.SessionID, err)
	}
	return nil
}

// Pool routes events from a queue to a fixed set of workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	routed    chan struct{}
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below 1 means
// one worker per CPU.
func NewPool(workerCount int, queue Queue, processor Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		routed:  make(chan struct{}),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(processor, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Slot returns the index of the worker that owns sessionID.
func (p *Pool) Slot(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(p.workers))) //nolint:gosec // len is small and positive
}

// Start launches the workers and the dispatcher. Calling it twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		go p.dispatch(ctx)
	})
}

func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, w := range p.workers {
			close(w.inbox)
		}
		close(p.routed)
	}()
	for e := range p.queue.Dequeue(ctx) {
		w := p.workers[p.Slot(e.SessionID)]
		select {
		case w.inbox <- e:
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes the queue, lets the workers drain what was already queued
// and waits for them until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		if !p.started.Load() {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		select {
		case <-p.routed:
		case <-shutdownCtx.Done():
			err = fmt.Errorf("dispatcher shutdown: %w", shutdownCtx.Err())
			return
		}
		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("worker shutdown: %w", shutdownCtx.Err())
				return
			}
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}
