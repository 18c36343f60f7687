package store

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/eventbus/internal/event"
)

type bucket map[*Subscription]struct{}

type bucketKind int

const (
	bucketUnset bucketKind = iota
	bucketNull
	bucketValue
	bucketUnindexed
)

// bucketRef records one bucket a subscription was inserted into.
type bucketRef struct {
	field string
	kind  bucketKind
	value any
	set   bucket
}

// Indexed keeps, per field, buckets of subscriptions keyed by the bound
// value, by null, and by unset. Template values that cannot be hashed go
// to a per-field unindexed bucket compared linearly at match time. Each
// subscription remembers its buckets, so removal touches only those.
type Indexed struct {
	typ      *event.Type
	log      zerolog.Logger
	mu       sync.Mutex
	seq      uint64
	modified atomic.Uint64

	byValue   map[string]map[any]bucket
	byNull    map[string]bucket
	byUnset   map[string]bucket
	unindexed map[string]bucket
	refs      map[*Subscription][]bucketRef
}

// NewIndexed creates an indexed store for t.
func NewIndexed(t *event.Type, opts ...Option) *Indexed {
	c := newConfig(opts)
	s := &Indexed{typ: t, log: c.log}
	s.reset()
	s.modified.Store(tick())
	return s
}

func (s *Indexed) reset() {
	n := s.typ.NumFields()
	s.byValue = make(map[string]map[any]bucket, n)
	s.byNull = make(map[string]bucket, n)
	s.byUnset = make(map[string]bucket, n)
	s.unindexed = make(map[string]bucket, n)
	s.refs = make(map[*Subscription][]bucketRef)
	for _, f := range s.typ.Fields() {
		s.byValue[f.Name] = make(map[any]bucket)
		s.byNull[f.Name] = make(bucket)
		s.byUnset[f.Name] = make(bucket)
		s.unindexed[f.Name] = make(bucket)
	}
}

// Type returns the event type this store serves.
func (s *Indexed) Type() *event.Type { return s.typ }

// bucketFor returns the bucket a template lands in for one field.
// Value buckets are created only when create is set.
func (s *Indexed) bucketFor(field string, template *event.Event, create bool) bucketRef {
	v, ok := template.Lookup(field)
	switch {
	case !ok:
		return bucketRef{field: field, kind: bucketUnset, set: s.byUnset[field]}
	case v == nil:
		return bucketRef{field: field, kind: bucketNull, set: s.byNull[field]}
	case event.Hashable(v):
		values := s.byValue[field]
		b, exists := values[v]
		if !exists && create {
			b = make(bucket)
			values[v] = b
		}
		return bucketRef{field: field, kind: bucketValue, value: v, set: b}
	default:
		return bucketRef{field: field, kind: bucketUnindexed, set: s.unindexed[field]}
	}
}

// find returns the oldest subscription registered with cb and an equal
// template. Caller holds the lock.
func (s *Indexed) find(cb *Callback, template *event.Event) *Subscription {
	fields := s.typ.Fields()
	if len(fields) == 0 {
		return nil
	}
	var found *Subscription
	for sub := range s.bucketFor(fields[0].Name, template, false).set {
		if sub.Same(cb, template) && (found == nil || sub.seq < found.seq) {
			found = sub
		}
	}
	return found
}

// Add registers cb for events matching template.
func (s *Indexed) Add(cb *Callback, template *event.Event) (*Subscription, error) {
	if err := checkType(s.typ, template); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(cb, template) != nil {
		s.log.Warn().Stringer("template", template).Stringer("callback", cb).Msg("subscription already exists")
	}

	s.seq++
	sub := &Subscription{seq: s.seq, callback: cb, template: template}
	refs := make([]bucketRef, 0, s.typ.NumFields())
	for _, f := range s.typ.Fields() {
		ref := s.bucketFor(f.Name, template, true)
		ref.set[sub] = struct{}{}
		refs = append(refs, ref)
	}
	s.refs[sub] = refs
	s.modified.Store(tick())
	return sub, nil
}

// detach removes sub from every bucket it was inserted into. Caller holds the lock.
func (s *Indexed) detach(sub *Subscription) {
	for _, ref := range s.refs[sub] {
		delete(ref.set, sub)
		if ref.kind == bucketValue && len(ref.set) == 0 {
			delete(s.byValue[ref.field], ref.value)
		}
	}
	delete(s.refs, sub)
}

// Remove deletes one subscription registered with cb and an equal template.
func (s *Indexed) Remove(cb *Callback, template *event.Event) bool {
	if template == nil || template.Type() != s.typ {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.find(cb, template)
	if sub == nil {
		return false
	}
	s.detach(sub)
	s.modified.Store(tick())
	return true
}

// RemoveAll deletes every subscription of cb.
func (s *Indexed) RemoveAll(cb *Callback) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []*Subscription
	for sub := range s.refs {
		if sub.callback == cb {
			doomed = append(doomed, sub)
		}
	}
	for _, sub := range doomed {
		s.detach(sub)
	}
	if len(doomed) > 0 {
		s.modified.Store(tick())
	}
	return len(doomed)
}

// Clear deletes all subscriptions.
func (s *Indexed) Clear() {
	s.mu.Lock()
	s.reset()
	s.modified.Store(tick())
	s.mu.Unlock()
}

// eligible reports whether sub accepts the event's state for one field.
func (s *Indexed) eligible(sub *Subscription, field string, e *event.Event) bool {
	if _, ok := s.byUnset[field][sub]; ok {
		return true
	}
	v, ok := e.Lookup(field)
	if !ok {
		return false
	}
	switch {
	case v == nil:
		_, in := s.byNull[field][sub]
		return in
	case event.Hashable(v):
		_, in := s.byValue[field][v][sub]
		return in
	default:
		if _, in := s.unindexed[field][sub]; !in {
			return false
		}
		return sub.matchesField(field, v)
	}
}

// candidates returns the subscriptions eligible for one field.
func (s *Indexed) candidates(field string, e *event.Event) bucket {
	out := make(bucket)
	for sub := range s.byUnset[field] {
		out[sub] = struct{}{}
	}
	v, ok := e.Lookup(field)
	if !ok {
		return out
	}
	switch {
	case v == nil:
		for sub := range s.byNull[field] {
			out[sub] = struct{}{}
		}
	case event.Hashable(v):
		for sub := range s.byValue[field][v] {
			out[sub] = struct{}{}
		}
	default:
		for sub := range s.unindexed[field] {
			if sub.matchesField(field, v) {
				out[sub] = struct{}{}
			}
		}
	}
	return out
}

// Match returns the subscriptions that strictly match e: the intersection
// over all declared fields of the per-field eligible sets.
func (s *Indexed) Match(e *event.Event) []*Subscription {
	if e.Type() != s.typ {
		return nil
	}
	fields := s.typ.Fields()
	if len(fields) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cands := s.candidates(fields[0].Name, e)
	for _, f := range fields[1:] {
		if len(cands) == 0 {
			return nil
		}
		for sub := range cands {
			if !s.eligible(sub, f.Name, e) {
				delete(cands, sub)
			}
		}
	}
	if len(cands) == 0 {
		return nil
	}

	out := make([]*Subscription, 0, len(cands))
	for sub := range cands {
		out = append(out, sub)
	}
	bySeq(out)
	return out
}

// CopyLooseInto adds the subscriptions loosely matching template into dst.
func (s *Indexed) CopyLooseInto(template *event.Event, dst Store) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.refs))
	for sub := range s.refs {
		if sub.MatchesLoose(template) {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	bySeq(subs)
	for _, sub := range subs {
		_, _ = dst.Add(sub.callback, sub.template)
	}
}

// LastModified returns the stamp of the latest mutation.
func (s *Indexed) LastModified() uint64 { return s.modified.Load() }

// Len returns the number of subscriptions.
func (s *Indexed) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Empty reports whether there are no subscriptions.
func (s *Indexed) Empty() bool { return s.Len() == 0 }
