package dispatch

import (
	"testing"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
)

func TestExecutor_Success(t *testing.T) {
	typ := event.NewRegistry().MustDeclare("Ping", event.F("name", event.String))
	var got *event.Event
	cb := store.NewCallback("cb", func(e *event.Event) { got = e })

	e := typ.New().MustSet("name", "x")
	r := NewExecutor(nil).Execute(e, cb)

	if !r.Success || r.Panicked {
		t.Errorf("expected success, got %+v", r)
	}
	if got != e {
		t.Error("callback did not receive the event")
	}
}

func TestExecutor_Panic(t *testing.T) {
	typ := event.NewRegistry().MustDeclare("Ping", event.F("name", event.String))
	cb := store.NewCallback("cb", func(*event.Event) { panic("test panic") })

	var handled any
	x := NewExecutor(func(e *event.Event, c *store.Callback, v any, stack []byte) {
		if c != cb {
			t.Error("panic handler got the wrong callback")
		}
		if len(stack) == 0 {
			t.Error("expected a stack trace")
		}
		handled = v
	})

	r := x.Execute(typ.New(), cb)
	if r.Success || !r.Panicked {
		t.Errorf("expected panic result, got %+v", r)
	}
	if r.PanicValue != "test panic" || handled != "test panic" {
		t.Errorf("unexpected panic value %v / %v", r.PanicValue, handled)
	}
}

func TestExecutor_PanickingHandler(t *testing.T) {
	typ := event.NewRegistry().MustDeclare("Ping")
	cb := store.NewCallback("cb", func(*event.Event) { panic("first") })
	x := NewExecutor(func(*event.Event, *store.Callback, any, []byte) { panic("second") })

	r := x.Execute(typ.New(), cb)
	if !r.Panicked {
		t.Error("expected panic result")
	}
}
