// Package dispatch delivers matched subscriptions to their callbacks.
//
// # Delivery Modes
//
//   - PostTo queues one delivery per subscription on the bus worker. The
//     worker is a single goroutine draining a bounded FIFO queue, so posted
//     deliveries of one bus run one at a time, in submission order, never
//     on the producer's goroutine.
//
//   - CallTo runs every callback immediately on the caller's goroutine, in
//     match order.
//
// # Overflow
//
// Push on a worker never blocks. When the queue is at its limit the
// Dispatcher logs a fatal-level diagnostic (the process keeps running),
// starts a replacement worker of the next generation and retries the
// delivery on it. A second failure is logged and counted in Stats.Lost;
// the producer never sees an error.
//
// # Draining
//
// Worker.Drain queues a no-op sentinel and waits for it to run. Because
// the queue is FIFO, every delivery queued before the sentinel has
// completed when Drain returns. A replaced worker is closed but still runs
// its queue; Dispatcher.Drain waits for replaced workers too, including
// ones replaced while it is waiting. Closing a worker never waits on its
// queue, so an overflowing producer is not held up by a pending drain.
// Dispatcher.Close drains, then stops every worker.
//
// # Panic Recovery
//
// Callbacks run through an Executor that recovers panics, so a failing
// subscriber never kills the worker. Panics are reported to a
// PanicHandler, which logs them by default.
package dispatch
