package bus

import (
	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event/dispatch"
	"github.com/dshills/eventbus/internal/logging"
)

// Option configures a Bus.
type Option func(*config)

// config contains configuration for a bus.
type config struct {
	// queueLimit is the capacity of the worker queue.
	queueLimit int

	// log is the parent logger; the bus adds its name.
	log zerolog.Logger

	// quiet disables per-post info logs.
	quiet bool

	// panicHandler is called when a subscriber panics.
	panicHandler dispatch.PanicHandler
}

func defaultConfig() config {
	return config{
		queueLimit: dispatch.DefaultQueueLimit,
		log:        logging.Component("bus"),
	}
}

// WithQueueLimit sets the worker queue capacity.
func WithQueueLimit(limit int) Option {
	return func(c *config) {
		if limit > 0 {
			c.queueLimit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithQuiet disables the per-post info logs, as Mute does.
func WithQuiet(quiet bool) Option {
	return func(c *config) {
		c.quiet = quiet
	}
}

// WithPanicHandler sets the handler called when a subscriber panics.
func WithPanicHandler(h dispatch.PanicHandler) Option {
	return func(c *config) {
		c.panicHandler = h
	}
}

func (c config) dispatchOptions() []dispatch.Option {
	opts := []dispatch.Option{
		dispatch.WithQueueLimit(c.queueLimit),
		dispatch.WithLogger(c.log),
	}
	if c.panicHandler != nil {
		opts = append(opts, dispatch.WithPanicHandler(c.panicHandler))
	}
	return opts
}
