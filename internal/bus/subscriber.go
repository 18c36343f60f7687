package bus

import (
	"fmt"
	"sync"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
)

// Subscriber groups subscriptions on one bus so they can be removed
// together with Close.
type Subscriber struct {
	bus *Bus

	mu      sync.Mutex
	entries []subscriberEntry
	closed  bool
}

type subscriberEntry struct {
	typ *event.Type
	cb  *store.Callback
}

// NewSubscriber creates a Subscriber for b.
func NewSubscriber(b *Bus) *Subscriber {
	return &Subscriber{bus: b}
}

// Subscribe registers cb on the bus and records it for Close.
func (s *Subscriber) Subscribe(template *event.Event, cb *store.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriberClosed
	}
	if err := s.bus.Subscribe(template, cb); err != nil {
		return err
	}
	s.entries = append(s.entries, subscriberEntry{typ: template.Type(), cb: cb})
	return nil
}

// SubscribeFunc wraps fn in a Callback named after the template type and
// subscribes it.
func (s *Subscriber) SubscribeFunc(template *event.Event, fn func(*event.Event)) (*store.Callback, error) {
	if template == nil {
		return nil, fmt.Errorf("subscribe with nil template: %w", event.ErrTypeMismatch)
	}
	cb := store.NewCallback(template.Type().ShortName(), fn)
	if err := s.Subscribe(template, cb); err != nil {
		return nil, err
	}
	return cb, nil
}

// Len returns the number of recorded subscriptions.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close unsubscribes every recorded callback. It is idempotent.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, e := range s.entries {
		s.bus.UnsubscribeAll(e.typ, e.cb)
	}
	s.entries = nil
	return nil
}
