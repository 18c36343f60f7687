package store

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/logging"
)

// clock hands out modification stamps. Every store mutation takes a new
// value, so stamps only ever grow.
var clock atomic.Uint64

func tick() uint64 { return clock.Add(1) }

// Container is the read side of a subscriber store.
type Container interface {
	// LastModified returns the stamp of the latest mutation.
	LastModified() uint64

	// Empty reports whether there are no subscriptions.
	Empty() bool

	// Len returns the number of subscriptions.
	Len() int

	// Match returns the subscriptions that strictly match e, in
	// subscription order.
	Match(e *event.Event) []*Subscription

	// CopyLooseInto adds every subscription that loosely matches
	// template into dst.
	CopyLooseInto(template *event.Event, dst Store)
}

// Store holds the subscriptions of one event type.
// Implementations are safe for concurrent use.
type Store interface {
	Container

	// Type returns the event type this store serves.
	Type() *event.Type

	// Add registers cb for events matching template.
	Add(cb *Callback, template *event.Event) (*Subscription, error)

	// Remove deletes one subscription registered with cb and an equal template.
	Remove(cb *Callback, template *event.Event) bool

	// RemoveAll deletes every subscription of cb and returns how many were removed.
	RemoveAll(cb *Callback) int

	// Clear deletes all subscriptions.
	Clear()
}

// Option configures a store.
type Option func(*config)

type config struct {
	log zerolog.Logger
}

// WithLogger sets the logger used for store warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

func newConfig(opts []Option) config {
	c := config{log: logging.Component("store")}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// New creates a store for t. The indexed strategy is used when any field
// type is hashable, the linear strategy otherwise.
func New(t *event.Type, opts ...Option) Store {
	if t.Indexable() {
		return NewIndexed(t, opts...)
	}
	return NewLinear(t, opts...)
}

func checkType(t *event.Type, e *event.Event) error {
	if e == nil {
		return fmt.Errorf("nil template for %s: %w", t.Name(), event.ErrTypeMismatch)
	}
	if e.Type() != t {
		return fmt.Errorf("store for %s got %s: %w", t.Name(), e.Type().Name(), event.ErrTypeMismatch)
	}
	return nil
}

func bySeq(subs []*Subscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
}
