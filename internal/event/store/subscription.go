package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/eventbus/internal/event"
)

// Callback is a subscriber handle. Subscriptions are identified by the
// callback pointer together with the template, so the same *Callback must
// be passed to unsubscribe.
type Callback struct {
	id   string
	name string
	fn   func(*event.Event)
}

// NewCallback wraps fn in a subscriber handle. The name is used in logs.
func NewCallback(name string, fn func(*event.Event)) *Callback {
	return &Callback{
		id:   uuid.New().String(),
		name: name,
		fn:   fn,
	}
}

// ID returns the unique handle id.
func (c *Callback) ID() string { return c.id }

// Name returns the descriptive name.
func (c *Callback) Name() string { return c.name }

// Invoke calls the wrapped function.
func (c *Callback) Invoke(e *event.Event) { c.fn(e) }

// String returns name#shortid.
func (c *Callback) String() string {
	return fmt.Sprintf("%s#%s", c.name, c.id[:8])
}

// Subscription pairs a callback with a template event.
type Subscription struct {
	seq      uint64
	callback *Callback
	template *event.Event
}

// Callback returns the subscriber handle.
func (s *Subscription) Callback() *Callback { return s.callback }

// Template returns the subscription template. It must not be mutated.
func (s *Subscription) Template() *event.Event { return s.template }

// String describes the subscription for logs.
func (s *Subscription) String() string {
	return fmt.Sprintf("Sub: %s -> %s", s.template, s.callback)
}

// Same reports whether s was registered with cb and an equal template.
func (s *Subscription) Same(cb *Callback, template *event.Event) bool {
	return s.callback == cb && s.template.Equal(template)
}

// MatchesStrict is the delivery-time match. Every field bound by the
// template must be set in e with an equal value; fields the template
// leaves unset accept anything.
func (s *Subscription) MatchesStrict(e *event.Event) bool {
	if e.TypeID() != s.template.TypeID() {
		return false
	}
	for _, name := range s.template.SetFields() {
		want, _ := s.template.Lookup(name)
		got, ok := e.Lookup(name)
		if !ok || !event.ValuesEqual(want, got) {
			return false
		}
	}
	return true
}

// MatchesLoose is used only when copying subscriptions into a narrower
// cached view. It is MatchesStrict except that a template-bound field the
// event leaves unset is accepted.
func (s *Subscription) MatchesLoose(e *event.Event) bool {
	if e.TypeID() != s.template.TypeID() {
		return false
	}
	for _, name := range s.template.SetFields() {
		got, ok := e.Lookup(name)
		if !ok {
			continue
		}
		want, _ := s.template.Lookup(name)
		if !event.ValuesEqual(want, got) {
			return false
		}
	}
	return true
}

// matchesField reports whether the template accepts value for one field
// the event has set.
func (s *Subscription) matchesField(name string, value any) bool {
	want, ok := s.template.Lookup(name)
	if !ok {
		return true
	}
	return event.ValuesEqual(want, value)
}
