package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/dispatch"
	"github.com/dshills/eventbus/internal/event/store"
)

// State is the lifecycle state of a Bus.
type State int32

const (
	// StateOpen accepts every operation.
	StateOpen State = iota
	// StateClosing drains queued deliveries; new work is refused.
	StateClosing
	// StateClosed is terminal. Subscriptions have been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Bus routes subscriptions and events to one SpecificBus per event type.
// Specific buses are created on first use and share one dispatcher, so
// all posted deliveries of a bus run on the same worker.
//
// Once the bus leaves StateOpen, Subscribe and Poster fail with
// ErrBusClosed, Post and Call do nothing and Unsubscribe returns false.
type Bus struct {
	name       string
	cfg        config
	log        zerolog.Logger
	dispatcher *dispatch.Dispatcher
	state      atomic.Int32
	quiet      atomic.Bool
	closed     chan struct{}
	closeErr   error // set before closed is closed

	// mu also orders subscribing against Close releasing the stores.
	mu       sync.RWMutex
	specific []*SpecificBus // indexed by type id
}

// New creates a bus and starts its worker.
func New(name string, opts ...Option) *Bus {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.log = cfg.log.With().Str("bus", name).Logger()

	b := &Bus{
		name:   name,
		cfg:    cfg,
		log:    cfg.log,
		closed: make(chan struct{}),
	}
	b.quiet.Store(cfg.quiet)
	b.dispatcher = dispatch.New(name, cfg.dispatchOptions()...)
	return b
}

// Name returns the bus name.
func (b *Bus) Name() string { return b.name }

// State returns the lifecycle state.
func (b *Bus) State() State { return State(b.state.Load()) }

func (b *Bus) open() bool { return b.State() == StateOpen }

// Mute disables the per-post info logs of the bus and its posters.
func (b *Bus) Mute() { b.quiet.Store(true) }

// Specific returns the SpecificBus for t, or nil if nothing has touched t
// on this bus yet.
func (b *Bus) Specific(t *event.Type) *SpecificBus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookup(t)
}

// lookup returns the SpecificBus for t or nil. Caller holds b.mu.
func (b *Bus) lookup(t *event.Type) *SpecificBus {
	if id := t.ID(); id < len(b.specific) {
		return b.specific[id]
	}
	return nil
}

// withSpecific runs fn with the SpecificBus for t, creating it on demand.
// fn runs under b.mu and only while the bus is open, so nothing it adds
// can outlive Close releasing the stores.
func (b *Bus) withSpecific(t *event.Type, fn func(*SpecificBus) error) error {
	b.mu.RLock()
	if s := b.lookup(t); s != nil {
		defer b.mu.RUnlock()
		if !b.open() {
			return ErrBusClosed
		}
		return fn(s)
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open() {
		return ErrBusClosed
	}
	s := b.lookup(t)
	if s == nil {
		id := t.ID()
		if id >= len(b.specific) {
			grown := make([]*SpecificBus, id+1)
			copy(grown, b.specific)
			b.specific = grown
		}
		s = newSpecificBus(t, b.dispatcher, store.WithLogger(b.log))
		b.specific[id] = s
	}
	return fn(s)
}

// Subscribe registers cb for events matching template. Fields left unset
// in template match any value.
func (b *Bus) Subscribe(template *event.Event, cb *store.Callback) error {
	if template == nil {
		return fmt.Errorf("subscribe with nil template: %w", event.ErrTypeMismatch)
	}
	return b.withSpecific(template.Type(), func(s *SpecificBus) error {
		return s.Subscribe(template, cb)
	})
}

// Unsubscribe removes one subscription of cb with an equal template.
func (b *Bus) Unsubscribe(template *event.Event, cb *store.Callback) bool {
	if template == nil || !b.open() {
		return false
	}
	s := b.Specific(template.Type())
	if s == nil {
		return false
	}
	return s.Unsubscribe(template, cb)
}

// UnsubscribeAll removes every subscription of cb for t. It reports
// whether anything was removed.
func (b *Bus) UnsubscribeAll(t *event.Type, cb *store.Callback) bool {
	if !b.open() {
		return false
	}
	s := b.Specific(t)
	if s == nil {
		return false
	}
	return s.UnsubscribeAll(cb) > 0
}

// Post queues e for asynchronous delivery to every matching subscriber.
// It does not block on slow subscribers.
func (b *Bus) Post(e *event.Event) {
	if e == nil || !b.open() {
		return
	}
	if !b.quiet.Load() {
		b.log.Info().Stringer("event", e).Msg("post")
	}
	if s := b.Specific(e.Type()); s != nil {
		s.Post(e)
	}
}

// Call delivers e synchronously to every matching subscriber, on the
// caller's goroutine, in subscription order.
func (b *Bus) Call(e *event.Event) {
	if e == nil || !b.open() {
		return
	}
	if !b.quiet.Load() {
		b.log.Info().Stringer("event", e).Msg("call")
	}
	if s := b.Specific(e.Type()); s != nil {
		s.Call(e)
	}
}

// Poster returns a prefiltered poster bound to template.
func (b *Bus) Poster(template *event.Event) (*Poster, error) {
	if template == nil {
		return nil, fmt.Errorf("poster with nil template: %w", event.ErrTypeMismatch)
	}
	var p *Poster
	err := b.withSpecific(template.Type(), func(s *SpecificBus) error {
		p = newPoster(b, s, template.Clone())
		return nil
	})
	return p, err
}

// Subscriber returns a Subscriber that tracks subscriptions made through
// it on b.
func (b *Bus) Subscriber() *Subscriber { return NewSubscriber(b) }

// Drain waits until every delivery posted so far has run.
func (b *Bus) Drain(ctx context.Context) error {
	return b.dispatcher.Drain(ctx)
}

// Close drains queued deliveries, releases all subscriptions and stops
// the worker. Deliveries queued before Close have run when it returns,
// unless ctx ends first. Close is idempotent; a Close that finds another
// one in progress waits for it.
func (b *Bus) Close(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		select {
		case <-b.closed:
			return b.closeErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.log.Debug().Msg("closing bus")

	err := b.dispatcher.Close(ctx)
	if err != nil {
		err = fmt.Errorf("close bus %s: %w", b.name, err)
	}
	defer func() {
		b.closeErr = err
		close(b.closed)
	}()

	b.mu.Lock()
	for _, s := range b.specific {
		if s != nil {
			s.clear()
		}
	}
	b.mu.Unlock()

	b.state.Store(int32(StateClosed))
	if err != nil {
		b.log.Warn().Err(err).Msg("bus closed before draining")
		return err
	}
	b.log.Debug().Msg("bus closed")
	return nil
}

// Stats contains statistics for a bus.
type Stats struct {
	Name          string
	State         State
	Types         int
	Subscriptions int
	Dispatch      dispatch.Stats
}

// Stats returns bus statistics.
func (b *Bus) Stats() Stats {
	st := Stats{
		Name:     b.name,
		State:    b.State(),
		Dispatch: b.dispatcher.Stats(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.specific {
		if s == nil {
			continue
		}
		st.Types++
		st.Subscriptions += s.store.Len()
	}
	return st
}
