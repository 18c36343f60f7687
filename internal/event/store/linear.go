package store

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
)

// Linear keeps subscriptions in a flat list and matches by scanning.
// It serves types without hashable fields, and the shadow stores of
// prefiltered posters.
type Linear struct {
	typ      *event.Type
	log      zerolog.Logger
	mu       sync.Mutex
	subs     []*Subscription
	seq      uint64
	modified atomic.Uint64
}

// NewLinear creates a linear store for t.
func NewLinear(t *event.Type, opts ...Option) *Linear {
	c := newConfig(opts)
	s := &Linear{typ: t, log: c.log}
	s.modified.Store(tick())
	return s
}

// Type returns the event type this store serves.
func (s *Linear) Type() *event.Type { return s.typ }

// Add registers cb for events matching template.
func (s *Linear) Add(cb *Callback, template *event.Event) (*Subscription, error) {
	if err := checkType(s.typ, template); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.Same(cb, template) {
			s.log.Warn().Stringer("template", template).Stringer("callback", cb).Msg("subscription already exists")
			break
		}
	}
	s.seq++
	sub := &Subscription{seq: s.seq, callback: cb, template: template}
	s.subs = append(s.subs, sub)
	s.modified.Store(tick())
	return sub, nil
}

// Remove deletes the first subscription registered with cb and an equal template.
func (s *Linear) Remove(cb *Callback, template *event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.Same(cb, template) {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			s.modified.Store(tick())
			return true
		}
	}
	return false
}

// RemoveAll deletes every subscription of cb.
func (s *Linear) RemoveAll(cb *Callback) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0:0]
	for _, sub := range s.subs {
		if sub.callback != cb {
			kept = append(kept, sub)
		}
	}
	removed := len(s.subs) - len(kept)
	if removed > 0 {
		s.subs = kept
		s.modified.Store(tick())
	}
	return removed
}

// Clear deletes all subscriptions.
func (s *Linear) Clear() {
	s.mu.Lock()
	s.subs = nil
	s.modified.Store(tick())
	s.mu.Unlock()
}

// Match returns the subscriptions that strictly match e.
func (s *Linear) Match(e *event.Event) []*Subscription {
	if e.Type() != s.typ {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Subscription
	for _, sub := range s.subs {
		if sub.MatchesStrict(e) {
			out = append(out, sub)
		}
	}
	return out
}

// CopyLooseInto adds the subscriptions loosely matching template into dst.
func (s *Linear) CopyLooseInto(template *event.Event, dst Store) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.MatchesLoose(template) {
			_, _ = dst.Add(sub.callback, sub.template)
		}
	}
}

// LastModified returns the stamp of the latest mutation.
func (s *Linear) LastModified() uint64 { return s.modified.Load() }

// Len returns the number of subscriptions.
func (s *Linear) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Empty reports whether there are no subscriptions.
func (s *Linear) Empty() bool { return s.Len() == 0 }
