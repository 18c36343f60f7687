package bus

import (
	"errors"
	"testing"

	"github.com/dshills/eventbus/internal/event"
)

func levelType() *event.Type {
	return event.NewRegistry().MustDeclare("Status",
		event.F("source", event.String),
		event.F("level", event.Int),
	)
}

func TestPoster_MergesTemplate(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	r := newRecorder("r")
	_ = b.Subscribe(status.New().MustSet("source", "disk"), r.cb)

	p, err := b.Poster(status.New().MustSet("source", "disk"))
	if err != nil {
		t.Fatalf("Poster failed: %v", err)
	}
	if err := p.Post(status.New().MustSet("level", 3)); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	e := r.wait(t)
	if v, _ := e.Get("source"); v != "disk" {
		t.Errorf("expected template field in delivered event, got %v", v)
	}
	if v, _ := e.Get("level"); v != 3 {
		t.Errorf("expected posted field in delivered event, got %v", v)
	}
}

func TestPoster_MergeConflict(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	p, _ := b.Poster(status.New().MustSet("source", "disk"))

	err := p.Post(status.New().MustSet("source", "net"))
	if !errors.Is(err, event.ErrMergeConflict) {
		t.Errorf("expected ErrMergeConflict, got %v", err)
	}
	var mc *event.MergeConflictError
	if !errors.As(err, &mc) || mc.Field != "source" {
		t.Errorf("expected conflict on source, got %v", err)
	}
	if err := p.Call(status.New().MustSet("source", "net")); !errors.Is(err, event.ErrMergeConflict) {
		t.Errorf("expected ErrMergeConflict from Call, got %v", err)
	}

	other := pingType()
	if err := p.Post(other.New()); !errors.Is(err, event.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestPoster_SeesLaterSubscriptions(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	p, _ := b.Poster(status.New().MustSet("source", "disk"))

	first := newRecorder("first")
	_ = b.Subscribe(status.New(), first.cb)
	_ = p.Call(nil)
	if first.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", first.count())
	}

	second := newRecorder("second")
	_ = b.Subscribe(status.New().MustSet("source", "disk"), second.cb)
	_ = p.Call(nil)
	if first.count() != 2 || second.count() != 1 {
		t.Errorf("poster missed a new subscription: first=%d second=%d", first.count(), second.count())
	}

	b.UnsubscribeAll(status, first.cb)
	_ = p.Call(nil)
	if first.count() != 2 {
		t.Errorf("poster delivered to a removed subscription")
	}
	if second.count() != 2 {
		t.Errorf("expected second delivery, got %d", second.count())
	}
}

func TestPoster_ExcludesOtherValues(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	net := newRecorder("net")
	_ = b.Subscribe(status.New().MustSet("source", "net"), net.cb)

	p, _ := b.Poster(status.New().MustSet("source", "disk"))
	_ = p.Call(status.New().MustSet("level", 1))
	if net.count() != 0 {
		t.Error("subscriber bound to another source received the event")
	}
}

// A subscription bound on a field the template leaves unset is copied
// into the shadow store, but strict matching still requires the posted
// event to set that field.
func TestPoster_LooseShadowStrictDelivery(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	lvl := newRecorder("level5")
	_ = b.Subscribe(status.New().MustSet("level", 5), lvl.cb)

	p, _ := b.Poster(status.New().MustSet("source", "disk"))

	_ = p.Call(nil)
	if p.shadow.Len() != 1 {
		t.Fatalf("expected the level subscription in the shadow store, got %d", p.shadow.Len())
	}
	if lvl.count() != 0 {
		t.Error("subscription bound on an unset field must not be delivered")
	}

	_ = p.Call(status.New().MustSet("level", 5))
	if lvl.count() != 1 {
		t.Errorf("expected delivery once level is set, got %d", lvl.count())
	}
}

func TestPoster_Derived(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	r := newRecorder("r")
	_ = b.Subscribe(status.New().MustSet("source", "disk").MustSet("level", 2), r.cb)

	p, _ := b.Poster(status.New().MustSet("source", "disk"))
	narrow, err := p.Poster(status.New().MustSet("level", 2))
	if err != nil {
		t.Fatalf("derived Poster failed: %v", err)
	}
	if !narrow.Template().Equal(status.New().MustSet("source", "disk").MustSet("level", 2)) {
		t.Errorf("unexpected derived template %s", narrow.Template())
	}

	_ = narrow.Call(nil)
	if r.count() != 1 {
		t.Errorf("expected 1 delivery, got %d", r.count())
	}
	if _, err := p.Poster(status.New().MustSet("source", "net")); !errors.Is(err, event.ErrMergeConflict) {
		t.Errorf("expected ErrMergeConflict, got %v", err)
	}
}

func TestPoster_PostAsync(t *testing.T) {
	status := levelType()
	b := newTestBus(t)
	r := newRecorder("r")
	_ = b.Subscribe(status.New(), r.cb)

	p, _ := b.Poster(status.New().MustSet("source", "disk"))
	p.Mute()
	for i := 0; i < 5; i++ {
		if err := p.Post(status.New().MustSet("level", i)); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}
	drain(t, b)
	if r.count() != 5 {
		t.Errorf("expected 5 deliveries, got %d", r.count())
	}
}
