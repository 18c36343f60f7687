package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
	"github.com/dshills/eventbus/internal/logging"
)

// Dispatcher delivers matched subscriptions for one bus. Posted
// deliveries run on a single worker in FIFO order; called deliveries run
// on the caller's goroutine.
//
// A full worker queue never blocks the producer. The dispatcher logs a
// fatal diagnostic, replaces the worker with a fresh one and retries
// once. If the retry fails too the delivery is logged and counted as
// lost. The replaced worker stops accepting work but still runs what it
// had queued.
type Dispatcher struct {
	name     string
	limit    int
	log      zerolog.Logger
	executor *Executor
	handler  PanicHandler

	mu      sync.Mutex
	worker  *Worker
	retired []*Worker
	closed  bool

	replacements atomic.Uint64
	lost         atomic.Uint64
	panicked     atomic.Uint64
	delivered    atomic.Uint64
	posted       atomic.Uint64
	called       atomic.Uint64
	callbackTime atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueLimit sets the worker queue capacity.
func WithQueueLimit(limit int) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.limit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithPanicHandler sets the handler called when a subscriber panics.
// The default logs the panic at error level.
func WithPanicHandler(h PanicHandler) Option {
	return func(d *Dispatcher) {
		d.handler = h
	}
}

// New creates a dispatcher and starts its first worker.
func New(name string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		name:  name,
		limit: DefaultQueueLimit,
		log:   logging.Component("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("bus", name).Logger()
	if d.handler == nil {
		d.handler = d.logPanic
	}
	d.executor = NewExecutor(d.handler)
	d.worker = NewWorker(name, 1, d.limit, d.log)
	return d
}

func (d *Dispatcher) logPanic(e *event.Event, cb *store.Callback, v any, stack []byte) {
	d.log.Error().
		Stringer("event", e).
		Stringer("callback", cb).
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("subscriber panicked")
}

// Name returns the bus name.
func (d *Dispatcher) Name() string { return d.name }

// Worker returns the current worker.
func (d *Dispatcher) Worker() *Worker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.worker
}

func (d *Dispatcher) invoke(e *event.Event, cb *store.Callback) {
	r := d.executor.Execute(e, cb)
	d.callbackTime.Add(int64(r.Duration))
	switch {
	case r.Success:
		d.delivered.Add(1)
	case r.Panicked:
		d.panicked.Add(1)
	}
}

// PostTo queues one delivery of e per subscription. It never blocks on a
// full queue and never returns an error to the producer.
func (d *Dispatcher) PostTo(e *event.Event, subs []*store.Subscription) {
	for _, sub := range subs {
		d.deliver(e, sub.Callback())
	}
}

func (d *Dispatcher) deliver(e *event.Event, cb *store.Callback) {
	fn := func() { d.invoke(e, cb) }
	desc := cb.String()

	w := d.Worker()
	err := w.Push(desc, fn)
	if errors.Is(err, ErrWorkerClosed) {
		// Another producer may have replaced w since it was read.
		if cur := d.Worker(); cur != w {
			w, err = cur, cur.Push(desc, fn)
		}
	}
	if err == nil {
		d.posted.Add(1)
		return
	}
	if errors.Is(err, ErrWorkerClosed) {
		d.log.Warn().Str("worker", w.Name()).Stringer("event", e).Msg("worker closed, delivery ignored")
		return
	}

	logging.Fatal(&d.log).
		Str("worker", w.Name()).
		Int("queue_depth", w.QueueDepth()).
		Int("queue_limit", w.Limit()).
		Str("busy", w.Busy()).
		Int("goroutines", runtime.NumGoroutine()).
		Stringer("event", e).
		Msg("worker queue overflow, replacing worker")

	nw := d.replace(w)
	if err := nw.Push(desc, fn); err != nil {
		d.lost.Add(1)
		logging.Fatal(&d.log).
			Err(err).
			Str("worker", nw.Name()).
			Stringer("event", e).
			Stringer("callback", cb).
			Msg("unable to deliver event")
		return
	}
	d.posted.Add(1)
}

// replace swaps old for a new worker of the next generation. If another
// producer already replaced old, the current worker is returned as is.
// The old worker is closed outside the lock; closing never waits on its
// queue.
func (d *Dispatcher) replace(old *Worker) *Worker {
	d.mu.Lock()
	if d.worker != old || d.closed {
		w := d.worker
		d.mu.Unlock()
		return w
	}
	nw := NewWorker(d.name, old.Generation()+1, d.limit, d.log)
	d.worker = nw
	d.retired = append(d.retired, old)
	d.replacements.Add(1)
	d.mu.Unlock()

	old.Close()
	d.log.Warn().Str("old", old.Name()).Str("new", nw.Name()).Msg("worker replaced")
	return nw
}

// CallTo invokes every subscription on the calling goroutine, in order.
func (d *Dispatcher) CallTo(e *event.Event, subs []*store.Subscription) {
	for _, sub := range subs {
		d.called.Add(1)
		d.invoke(e, sub.Callback())
	}
}

// Drain waits until every delivery posted before the call has run,
// including deliveries queued on replaced workers. Workers replaced while
// Drain is waiting are waited for too.
func (d *Dispatcher) Drain(ctx context.Context) error {
	for {
		w, retired := d.snapshot()
		if err := waitAll(ctx, retired); err != nil {
			return err
		}

		err := w.Drain(ctx)
		if errors.Is(err, ErrWorkerClosed) {
			// Replaced or closed meanwhile; its queue still runs.
			err = waitAll(ctx, []*Worker{w})
		}
		if err != nil {
			return err
		}

		d.mu.Lock()
		stable := d.worker == w
		d.mu.Unlock()
		if stable {
			d.prune()
			return nil
		}
	}
}

// snapshot returns the current worker and the replaced ones still running.
func (d *Dispatcher) snapshot() (*Worker, []*Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.worker, append([]*Worker(nil), d.retired...)
}

func waitAll(ctx context.Context, workers []*Worker) error {
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// prune forgets replaced workers that have exited.
func (d *Dispatcher) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := d.retired[:0]
	for _, r := range d.retired {
		select {
		case <-r.Done():
		default:
			live = append(live, r)
		}
	}
	for i := len(live); i < len(d.retired); i++ {
		d.retired[i] = nil
	}
	d.retired = live
}

// Close drains queued deliveries, then stops the worker and waits for it
// and every replaced worker to exit. No worker is replaced after Close
// starts stopping them. If ctx ends first the workers are still stopped
// and finish their queues in the background. Posts after Close are
// ignored. Close is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	drainErr := d.Drain(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return drainErr
	}
	d.closed = true
	w := d.worker
	workers := append([]*Worker{w}, d.retired...)
	d.mu.Unlock()

	w.Close()
	if drainErr != nil {
		return drainErr
	}
	return waitAll(ctx, workers)
}

// Stats contains dispatcher statistics.
type Stats struct {
	Worker       WorkerStats
	Retired      int
	Posted       uint64
	Called       uint64
	Delivered    uint64
	Panicked     uint64
	Replacements uint64
	Lost         uint64

	// CallbackTime is the total time spent in subscriber callbacks.
	CallbackTime time.Duration
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	w := d.worker
	retired := len(d.retired)
	d.mu.Unlock()

	return Stats{
		Worker:       w.Stats(),
		Retired:      retired,
		Posted:       d.posted.Load(),
		Called:       d.called.Load(),
		Delivered:    d.delivered.Load(),
		Panicked:     d.panicked.Load(),
		Replacements: d.replacements.Load(),
		Lost:         d.lost.Load(),
		CallbackTime: time.Duration(d.callbackTime.Load()),
	}
}
