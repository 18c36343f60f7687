package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueLimit is the default number of deliveries a worker queues.
const DefaultQueueLimit = 200

// Worker is a single goroutine draining a bounded FIFO queue.
type Worker struct {
	id   string
	name string
	gen  int
	log  zerolog.Logger

	mu      sync.RWMutex // orders Push against Close
	closed  bool
	closing chan struct{}
	queue   chan task
	done    chan struct{}

	// busy holds the description of the running task, or "".
	busy atomic.Value

	enqueued  atomic.Uint64
	processed atomic.Uint64
	panicked  atomic.Uint64
	rejected  atomic.Uint64
}

type task struct {
	desc     string
	fn       func()
	sentinel bool
}

// NewWorker starts a worker. gen numbers replacement workers of one bus,
// starting at 1.
func NewWorker(name string, gen, limit int, log zerolog.Logger) *Worker {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	w := &Worker{
		id:    uuid.New().String(),
		name:  name,
		gen:   gen,
		closing: make(chan struct{}),
		queue:   make(chan task, limit),
		done:    make(chan struct{}),
	}
	w.log = log.With().Str("worker", w.Name()).Logger()
	w.busy.Store("")
	go w.loop()
	return w
}

// Name returns name-gen.
func (w *Worker) Name() string {
	return fmt.Sprintf("%s-%d", w.name, w.gen)
}

// ID returns the unique worker id.
func (w *Worker) ID() string { return w.id }

// Generation returns the replacement generation, starting at 1.
func (w *Worker) Generation() int { return w.gen }

// Limit returns the queue capacity.
func (w *Worker) Limit() int { return cap(w.queue) }

// QueueDepth returns the number of tasks waiting.
func (w *Worker) QueueDepth() int { return len(w.queue) }

// Busy returns the description of the task being run, or "".
func (w *Worker) Busy() string { return w.busy.Load().(string) }

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) loop() {
	defer close(w.done)
	w.log.Debug().Msg("worker started")

	for {
		select {
		case t := <-w.queue:
			w.run(t)
		case <-w.closing:
			// Everything pushed before Close is already in the queue.
			for {
				select {
				case t := <-w.queue:
					w.run(t)
				default:
					w.log.Debug().Msg("worker exiting")
					return
				}
			}
		}
	}
}

func (w *Worker) run(t task) {
	w.busy.Store(t.desc)
	defer func() {
		w.busy.Store("")
		if !t.sentinel {
			w.processed.Add(1)
		}
		if r := recover(); r != nil {
			w.panicked.Add(1)
			w.log.Warn().Str("task", t.desc).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("task panicked")
		}
	}()
	w.log.Trace().Str("task", t.desc).Msg("executing")
	t.fn()
}

// Push queues fn without blocking. It fails with ErrQueueFull when the
// queue is at its limit and ErrWorkerClosed after Close.
func (w *Worker) Push(desc string, fn func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWorkerClosed
	}
	select {
	case w.queue <- task{desc: desc, fn: fn}:
		w.enqueued.Add(1)
		return nil
	default:
		w.rejected.Add(1)
		w.log.Warn().Int("limit", cap(w.queue)).Msg("worker queue limit reached")
		return ErrQueueFull
	}
}

// Drain queues a no-op sentinel and waits until it has run, so every task
// queued before the call has completed. Unlike Push it waits for queue
// space. It fails with ErrWorkerClosed once the worker is closed, in which
// case callers wait on Done instead. Drain must not be called from a task
// running on this worker.
func (w *Worker) Drain(ctx context.Context) error {
	ran := make(chan struct{})
	sentinel := task{desc: "drain", fn: func() { close(ran) }, sentinel: true}

	select {
	case <-w.closing:
		return ErrWorkerClosed
	default:
	}
	select {
	case w.queue <- sentinel:
	case <-w.closing:
		return ErrWorkerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-w.done:
		// The sentinel may have landed after the final sweep.
		select {
		case <-ran:
			return nil
		default:
			return ErrWorkerClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks. Tasks already queued still run; Done is
// closed once they have. Close never blocks on the queue and is
// idempotent.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.closing)
}

// IsClosed reports whether Close has been called.
func (w *Worker) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// WorkerStats contains statistics for a worker.
type WorkerStats struct {
	Name       string
	Generation int
	QueueDepth int
	QueueLimit int
	Enqueued   uint64
	Processed  uint64
	Panicked   uint64
	Rejected   uint64
}

// Stats returns worker statistics.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Name:       w.Name(),
		Generation: w.gen,
		QueueDepth: w.QueueDepth(),
		QueueLimit: w.Limit(),
		Enqueued:   w.enqueued.Load(),
		Processed:  w.processed.Load(),
		Panicked:   w.panicked.Load(),
		Rejected:   w.rejected.Load(),
	}
}
