package dispatch

import (
	"runtime/debug"
	"time"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
)

// Result represents the outcome of one callback invocation.
type Result struct {
	// Success is true if the callback returned normally.
	Success bool

	// Panicked is true if the callback panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the callback took to execute.
	Duration time.Duration
}

// PanicHandler is called when a callback panics.
type PanicHandler func(e *event.Event, cb *store.Callback, panicValue any, stack []byte)

// Executor runs callbacks with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// NewExecutor creates a new executor. A nil panic handler silently recovers.
func NewExecutor(h PanicHandler) *Executor {
	return &Executor{panicHandler: h}
}

// Execute invokes cb with e and returns the result.
func (x *Executor) Execute(e *event.Event, cb *store.Callback) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			// Protect the panic handler call - don't let it crash the worker
			if x.panicHandler != nil {
				func() {
					defer func() {
						_ = recover()
					}()
					x.panicHandler(e, cb, r, stack)
				}()
			}
		}
	}()

	cb.Invoke(e)
	result.Success = true
	return result
}
