package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
	"github.com/dshills/eventbus/internal/logging"
)

// Poster posts events that share a fixed partial template. It keeps a
// shadow store holding the parent subscriptions that loosely match the
// template and rebuilds it only when the parent store has changed, so
// posting many similar events skips most of the matching work.
//
// Delivery still uses strict matching against the merged event. A
// subscription bound on a field the template leaves unset is copied into
// the shadow store, but it is not delivered to unless the posted event
// sets that field to the bound value.
type Poster struct {
	bus      *Bus
	parent   *SpecificBus
	template *event.Event
	quiet    atomic.Bool

	mu     sync.Mutex
	shadow *store.Linear
	stamp  uint64
}

func newPoster(b *Bus, parent *SpecificBus, template *event.Event) *Poster {
	return &Poster{
		bus:      b,
		parent:   parent,
		template: template,
		shadow:   store.NewLinear(parent.Type(), store.WithLogger(logging.Nop())),
	}
}

// Template returns a copy of the bound template.
func (p *Poster) Template() *event.Event { return p.template.Clone() }

// Mute disables this poster's per-post info logs.
func (p *Poster) Mute() { p.quiet.Store(true) }

func (p *Poster) muted() bool { return p.quiet.Load() || p.bus.quiet.Load() }

// Poster derives a narrower poster whose template is this poster's
// template merged with template.
func (p *Poster) Poster(template *event.Event) (*Poster, error) {
	merged, err := p.template.Merge(template)
	if err != nil {
		return nil, err
	}
	if !p.bus.open() {
		return nil, ErrBusClosed
	}
	sub := newPoster(p.bus, p.parent, merged)
	sub.quiet.Store(p.quiet.Load())
	return sub, nil
}

// match rebuilds the shadow store if the parent changed since the last
// build and returns the current matches for e.
func (p *Poster) match(e *event.Event) []*store.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent := p.parent.Subscriptions()
	if stamp := parent.LastModified(); stamp != p.stamp {
		p.shadow.Clear()
		parent.CopyLooseInto(p.template, p.shadow)
		p.stamp = stamp
		p.bus.log.Debug().
			Stringer("template", p.template).
			Int("subscriptions", p.shadow.Len()).
			Msg("poster refreshed")
	}
	if p.shadow.Empty() {
		return nil
	}
	return p.shadow.Match(e)
}

// merge binds e onto the template. A nil e posts the template itself.
func (p *Poster) merge(e *event.Event) (*event.Event, error) {
	if e == nil {
		return p.template.Clone(), nil
	}
	merged, err := p.template.Merge(e)
	if err != nil {
		return nil, fmt.Errorf("poster %s: %w", p.template.Type().Name(), err)
	}
	return merged, nil
}

// Post merges e with the template and queues it for every subscriber that
// strictly matches the result. It fails only if e conflicts with the
// template or has another type.
func (p *Poster) Post(e *event.Event) error {
	merged, err := p.merge(e)
	if err != nil {
		return err
	}
	if !p.bus.open() {
		return nil
	}
	if !p.muted() {
		p.bus.log.Info().Stringer("event", merged).Msg("poster post")
	}
	if subs := p.match(merged); len(subs) > 0 {
		p.parent.dispatcher.PostTo(merged, subs)
	}
	return nil
}

// Call is Post with synchronous delivery on the caller's goroutine.
func (p *Poster) Call(e *event.Event) error {
	merged, err := p.merge(e)
	if err != nil {
		return err
	}
	if !p.bus.open() {
		return nil
	}
	if !p.muted() {
		p.bus.log.Info().Stringer("event", merged).Msg("poster call")
	}
	if subs := p.match(merged); len(subs) > 0 {
		p.parent.dispatcher.CallTo(merged, subs)
	}
	return nil
}
