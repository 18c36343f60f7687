package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/logging"
)

type fixture struct {
	ping  *event.Type // indexable
	blob  *event.Type // linear only
	mixed *event.Type // indexable, with a non-hashable field
}

func newFixture() fixture {
	r := event.NewRegistry()
	return fixture{
		ping:  r.MustDeclare("Ping", event.F("name", event.String), event.F("level", event.Int)),
		blob:  r.MustDeclare("Blob", event.F("tags", event.Strings)),
		mixed: r.MustDeclare("Mixed", event.F("name", event.String), event.F("payload", event.Any)),
	}
}

func nopCallback(name string) *Callback {
	return NewCallback(name, func(*event.Event) {})
}

// strategies runs fn against both store implementations for t.
func strategies(t *testing.T, typ *event.Type, fn func(t *testing.T, s Store)) {
	t.Helper()
	opt := WithLogger(logging.Nop())
	t.Run("indexed", func(t *testing.T) { fn(t, NewIndexed(typ, opt)) })
	t.Run("linear", func(t *testing.T) { fn(t, NewLinear(typ, opt)) })
}

func matched(subs []*Subscription, cb *Callback) bool {
	for _, s := range subs {
		if s.Callback() == cb {
			return true
		}
	}
	return false
}

func TestNew_SelectsStrategy(t *testing.T) {
	f := newFixture()
	if _, ok := New(f.ping).(*Indexed); !ok {
		t.Error("expected indexed store for hashable fields")
	}
	if _, ok := New(f.blob).(*Linear); !ok {
		t.Error("expected linear store for non-hashable fields")
	}
}

func TestStore_StrictMatching(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		wild := nopCallback("wild")
		bound := nopCallback("bound")
		s.Add(wild, f.ping.New())
		s.Add(bound, f.ping.New().MustSet("name", "v"))

		tests := []struct {
			name      string
			event     *event.Event
			wantWild  bool
			wantBound bool
		}{
			{"field unset", f.ping.New(), true, false},
			{"field equal", f.ping.New().MustSet("name", "v"), true, true},
			{"field differs", f.ping.New().MustSet("name", "w"), true, false},
			{"field null", f.ping.New().MustSet("name", nil), true, false},
			{"other field set", f.ping.New().MustSet("level", 3), true, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				subs := s.Match(tt.event)
				if got := matched(subs, wild); got != tt.wantWild {
					t.Errorf("wildcard matched=%v, want %v", got, tt.wantWild)
				}
				if got := matched(subs, bound); got != tt.wantBound {
					t.Errorf("bound matched=%v, want %v", got, tt.wantBound)
				}
			})
		}
	})
}

func TestStore_NullVersusUnset(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		cb := nopCallback("null")
		s.Add(cb, f.ping.New().MustSet("name", nil))

		if !matched(s.Match(f.ping.New().MustSet("name", nil)), cb) {
			t.Error("null-bound template should match explicit null")
		}
		if matched(s.Match(f.ping.New()), cb) {
			t.Error("null-bound template should not match unset field")
		}
		if matched(s.Match(f.ping.New().MustSet("name", "x")), cb) {
			t.Error("null-bound template should not match a value")
		}
	})
}

func TestStore_MultiFieldIntersection(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		both := nopCallback("both")
		s.Add(both, f.ping.New().MustSet("name", "a").MustSet("level", 1))

		if !matched(s.Match(f.ping.New().MustSet("name", "a").MustSet("level", 1)), both) {
			t.Error("expected match when all bound fields agree")
		}
		if matched(s.Match(f.ping.New().MustSet("name", "a").MustSet("level", 2)), both) {
			t.Error("expected no match when one bound field differs")
		}
	})
}

func TestStore_UnindexedValues(t *testing.T) {
	f := newFixture()
	strategies(t, f.mixed, func(t *testing.T, s Store) {
		cb := nopCallback("payload")
		s.Add(cb, f.mixed.New().MustSet("payload", []int{1, 2}))
		hashed := nopCallback("hashed")
		s.Add(hashed, f.mixed.New().MustSet("payload", 7))

		if !matched(s.Match(f.mixed.New().MustSet("payload", []int{1, 2})), cb) {
			t.Error("expected match on equal non-hashable value")
		}
		if matched(s.Match(f.mixed.New().MustSet("payload", []int{3})), cb) {
			t.Error("expected no match on different non-hashable value")
		}
		subs := s.Match(f.mixed.New().MustSet("payload", 7))
		if !matched(subs, hashed) || matched(subs, cb) {
			t.Error("hashable payload should match only its own bucket")
		}
	})
}

func TestStore_MatchOrder(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		var cbs []*Callback
		for i := 0; i < 10; i++ {
			cb := nopCallback(fmt.Sprintf("cb-%d", i))
			cbs = append(cbs, cb)
			s.Add(cb, f.ping.New())
		}
		subs := s.Match(f.ping.New())
		if len(subs) != len(cbs) {
			t.Fatalf("expected %d matches, got %d", len(cbs), len(subs))
		}
		for i, sub := range subs {
			if sub.Callback() != cbs[i] {
				t.Fatalf("match %d: expected %s, got %s", i, cbs[i], sub.Callback())
			}
		}
	})
}

func TestStore_Remove(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		cb := nopCallback("cb")
		tmpl := f.ping.New().MustSet("name", "x")
		s.Add(cb, tmpl)

		if s.Remove(nopCallback("other"), tmpl) {
			t.Error("remove with a different callback should fail")
		}
		if s.Remove(cb, f.ping.New().MustSet("name", "y")) {
			t.Error("remove with a different template should fail")
		}
		if !s.Remove(cb, f.ping.New().MustSet("name", "x")) {
			t.Fatal("remove with equal template should succeed")
		}
		if !s.Empty() {
			t.Errorf("expected empty store, got %d", s.Len())
		}
		if len(s.Match(f.ping.New().MustSet("name", "x"))) != 0 {
			t.Error("removed subscription should not match")
		}
		if s.Remove(cb, tmpl) {
			t.Error("second remove should fail")
		}
	})
}

func TestStore_RemoveAll(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		cb := nopCallback("cb")
		keep := nopCallback("keep")
		s.Add(cb, f.ping.New())
		s.Add(cb, f.ping.New().MustSet("name", "x"))
		s.Add(cb, f.ping.New().MustSet("level", nil))
		s.Add(keep, f.ping.New())

		if n := s.RemoveAll(cb); n != 3 {
			t.Errorf("expected 3 removed, got %d", n)
		}
		if n := s.RemoveAll(cb); n != 0 {
			t.Errorf("expected 0 removed on second call, got %d", n)
		}
		if s.Len() != 1 {
			t.Errorf("expected 1 remaining, got %d", s.Len())
		}
	})
}

func TestStore_DuplicateAdd(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		cb := nopCallback("cb")
		s.Add(cb, f.ping.New())
		s.Add(cb, f.ping.New())

		if s.Len() != 2 {
			t.Errorf("duplicates are kept, expected 2, got %d", s.Len())
		}
		if !s.Remove(cb, f.ping.New()) || s.Len() != 1 {
			t.Error("remove should delete exactly one duplicate")
		}
	})
}

func TestStore_TypeMismatch(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		_, err := s.Add(nopCallback("cb"), f.blob.New())
		if !errors.Is(err, event.ErrTypeMismatch) {
			t.Errorf("expected ErrTypeMismatch, got %v", err)
		}
		if s.Match(f.blob.New()) != nil {
			t.Error("events of another type never match")
		}
	})
}

func TestStore_LastModified(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		cb := nopCallback("cb")
		t0 := s.LastModified()
		s.Add(cb, f.ping.New())
		t1 := s.LastModified()
		if t1 <= t0 {
			t.Fatalf("stamp should grow on add: %d -> %d", t0, t1)
		}
		s.Match(f.ping.New())
		if s.LastModified() != t1 {
			t.Error("match must not change the stamp")
		}
		s.RemoveAll(cb)
		if s.LastModified() <= t1 {
			t.Error("stamp should grow on removal")
		}
		t2 := s.LastModified()
		s.RemoveAll(cb)
		if s.LastModified() != t2 {
			t.Error("no-op RemoveAll must not change the stamp")
		}
		s.Clear()
		if s.LastModified() <= t2 {
			t.Error("stamp should grow on clear")
		}
	})
}

func TestStore_CopyLooseInto(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		byName := nopCallback("byName")
		byLevel := nopCallback("byLevel")
		otherName := nopCallback("otherName")
		s.Add(byName, f.ping.New().MustSet("name", "a"))
		s.Add(byLevel, f.ping.New().MustSet("level", 5))
		s.Add(otherName, f.ping.New().MustSet("name", "b"))

		shadow := NewLinear(f.ping, WithLogger(logging.Nop()))
		s.CopyLooseInto(f.ping.New().MustSet("name", "a"), shadow)

		if shadow.Len() != 2 {
			t.Fatalf("expected byName and byLevel in shadow, got %d", shadow.Len())
		}
		all := shadow.Match(f.ping.New().MustSet("name", "a").MustSet("level", 5))
		if !matched(all, byName) || !matched(all, byLevel) || matched(all, otherName) {
			t.Error("shadow store contents are wrong")
		}
	})
}

func TestSubscription_StrictVersusLoose(t *testing.T) {
	f := newFixture()
	sub := &Subscription{callback: nopCallback("cb"), template: f.ping.New().MustSet("level", 1)}

	unset := f.ping.New().MustSet("name", "a")
	if sub.MatchesStrict(unset) {
		t.Error("strict match must reject an event leaving a bound field unset")
	}
	if !sub.MatchesLoose(unset) {
		t.Error("loose match must accept an event leaving a bound field unset")
	}
	differs := f.ping.New().MustSet("level", 2)
	if sub.MatchesStrict(differs) || sub.MatchesLoose(differs) {
		t.Error("no match mode accepts a differing value")
	}
}

func TestStore_ConcurrentMutation(t *testing.T) {
	f := newFixture()
	strategies(t, f.ping, func(t *testing.T, s Store) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cb := nopCallback(fmt.Sprintf("cb-%d", i))
				for j := 0; j < 50; j++ {
					tmpl := f.ping.New().MustSet("level", j%5)
					s.Add(cb, tmpl)
					s.Match(f.ping.New().MustSet("level", j%5).MustSet("name", "n"))
					if j%2 == 0 {
						s.Remove(cb, tmpl)
					}
				}
				s.RemoveAll(cb)
			}(i)
		}
		wg.Wait()

		if !s.Empty() {
			t.Errorf("expected empty store, got %d", s.Len())
		}
	})
}
