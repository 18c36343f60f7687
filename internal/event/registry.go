package event

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds declared event types by name.
//
// A registry is populated once at startup and then sealed; after Seal it
// is read-only. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
	byID   map[int]*Type
	sealed bool
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Type),
		byID:   make(map[int]*Type),
	}
}

// Declare registers a new event type with an ordered field list.
func (r *Registry) Declare(name string, fields ...Field) (*Type, error) {
	if name == "" {
		return nil, &SchemaError{Type: "<empty>", Field: "-", Message: "type name cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("declare %s: %w", name, ErrRegistrySealed)
	}
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("declare %s: %w", name, ErrDuplicateType)
	}

	t, err := newType(name, fields)
	if err != nil {
		return nil, err
	}
	r.byName[name] = t
	r.byID[t.id] = t
	return t, nil
}

// MustDeclare is like Declare but panics on error.
func (r *Registry) MustDeclare(name string, fields ...Field) *Type {
	t, err := r.Declare(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the type with the given fully qualified name.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownType)
	}
	return t, nil
}

// ByID returns the type with the given id.
func (r *Registry) ByID(id int) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	return t, ok
}

// Contains reports whether a type with the given name is declared.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byName[name]
	return ok
}

// Types returns all declared types ordered by id.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Type, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Group returns a view that declares types under a common name prefix.
func (r *Registry) Group(name string) *Group {
	return &Group{registry: r, name: name}
}

// Group declares related event types as "group.Type".
type Group struct {
	registry *Registry
	name     string
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Declare registers group.name with the given fields.
func (g *Group) Declare(name string, fields ...Field) (*Type, error) {
	return g.registry.Declare(g.qualify(name), fields...)
}

// MustDeclare is like Declare but panics on error.
func (g *Group) MustDeclare(name string, fields ...Field) *Type {
	return g.registry.MustDeclare(g.qualify(name), fields...)
}

// Lookup returns a type of this group by its short name.
func (g *Group) Lookup(name string) (*Type, error) {
	return g.registry.Lookup(g.qualify(name))
}

// Contains reports whether the group declares the short name.
func (g *Group) Contains(name string) bool {
	return g.registry.Contains(g.qualify(name))
}

// Types returns the group's types ordered by id.
func (g *Group) Types() []*Type {
	prefix := g.name + "."
	var out []*Type
	for _, t := range g.registry.Types() {
		if len(t.name) > len(prefix) && t.name[:len(prefix)] == prefix {
			out = append(out, t)
		}
	}
	return out
}

func (g *Group) qualify(name string) string {
	return g.name + "." + name
}
