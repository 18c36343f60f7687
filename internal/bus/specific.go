package bus

import (
	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/dispatch"
	"github.com/dshills/eventbus/internal/event/store"
)

// SpecificBus serves one event type. It owns the type's subscriber store
// and shares the dispatcher of its aggregate Bus.
type SpecificBus struct {
	typ        *event.Type
	store      store.Store
	dispatcher *dispatch.Dispatcher
}

func newSpecificBus(t *event.Type, d *dispatch.Dispatcher, opts ...store.Option) *SpecificBus {
	return &SpecificBus{
		typ:        t,
		store:      store.New(t, opts...),
		dispatcher: d,
	}
}

// Type returns the event type.
func (s *SpecificBus) Type() *event.Type { return s.typ }

// Subscriptions returns the read side of the subscriber store.
func (s *SpecificBus) Subscriptions() store.Container { return s.store }

// Subscribe registers cb for events matching template.
func (s *SpecificBus) Subscribe(template *event.Event, cb *store.Callback) error {
	_, err := s.store.Add(cb, template)
	return err
}

// Unsubscribe removes one subscription of cb with an equal template.
func (s *SpecificBus) Unsubscribe(template *event.Event, cb *store.Callback) bool {
	return s.store.Remove(cb, template)
}

// UnsubscribeAll removes every subscription of cb and returns the count.
func (s *SpecificBus) UnsubscribeAll(cb *store.Callback) int {
	return s.store.RemoveAll(cb)
}

// Post queues e for every matching subscription and returns how many
// matched.
func (s *SpecificBus) Post(e *event.Event) int {
	if s.store.Empty() {
		return 0
	}
	subs := s.store.Match(e)
	if len(subs) > 0 {
		s.dispatcher.PostTo(e, subs)
	}
	return len(subs)
}

// Call runs every matching subscription on the caller's goroutine and
// returns how many matched.
func (s *SpecificBus) Call(e *event.Event) int {
	if s.store.Empty() {
		return 0
	}
	subs := s.store.Match(e)
	if len(subs) > 0 {
		s.dispatcher.CallTo(e, subs)
	}
	return len(subs)
}

func (s *SpecificBus) clear() { s.store.Clear() }
