package event

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Event is a partially bound instance of one event Type.
//
// Each declared field is in one of three states: unset, set to a value,
// or set to null (a nil value). Unset fields act as wildcards when the
// event is used as a subscription template.
//
// Events are not safe for concurrent mutation; treat an event as
// read-only once it has been handed to a bus.
type Event struct {
	typ    *Type
	values map[string]any
}

// Type returns the event type descriptor.
func (e *Event) Type() *Type { return e.typ }

// TypeID returns the numeric identity of the event type.
func (e *Event) TypeID() int { return e.typ.id }

// Set assigns a field, validating and coercing the value against the
// declared field type. A nil value marks the field as explicitly null.
func (e *Event) Set(name string, value any) error {
	f, ok := e.typ.Field(name)
	if !ok {
		return &SchemaError{Type: e.typ.name, Field: name, Message: "no such field"}
	}
	v, err := f.Type.coerce(value)
	if err != nil {
		return &SchemaError{Type: e.typ.name, Field: name, Message: err.Error()}
	}
	if e.values == nil {
		e.values = make(map[string]any, len(e.typ.fields))
	}
	e.values[name] = v
	return nil
}

// MustSet is like Set but panics on schema errors. It returns e for chaining.
func (e *Event) MustSet(name string, value any) *Event {
	if err := e.Set(name, value); err != nil {
		panic(err)
	}
	return e
}

// Get returns the value of a set field. The value is nil for an explicit null.
func (e *Event) Get(name string) (any, error) {
	if !e.typ.HasField(name) {
		return nil, &SchemaError{Type: e.typ.name, Field: name, Message: "no such field"}
	}
	v, ok := e.values[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", e.typ.name, name, ErrFieldNotSet)
	}
	return v, nil
}

// Lookup returns the field value and whether the field is set.
// Unknown field names report false.
func (e *Event) Lookup(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// IsSet reports whether the field has been set, including set to null.
func (e *Event) IsSet(name string) bool {
	_, ok := e.values[name]
	return ok
}

// NumSet returns the number of set fields.
func (e *Event) NumSet() int { return len(e.values) }

// SetFields returns the names of set fields in declaration order.
func (e *Event) SetFields() []string {
	out := make([]string, 0, len(e.values))
	for _, f := range e.typ.fields {
		if _, ok := e.values[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// Params returns a copy of the set fields and their values.
func (e *Event) Params() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// FromParams sets every declared field present in params and ignores the rest.
func (e *Event) FromParams(params map[string]any) error {
	for _, f := range e.typ.fields {
		v, ok := params[f.Name]
		if !ok {
			continue
		}
		if err := e.Set(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether both events have the same type, the same set of
// set fields and equal values for them.
func (e *Event) Equal(other *Event) bool {
	if other == nil {
		return false
	}
	if e.typ != other.typ || len(e.values) != len(other.values) {
		return false
	}
	for k, v := range e.values {
		ov, ok := other.values[k]
		if !ok || !ValuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// Clone returns a copy holding only the set fields.
func (e *Event) Clone() *Event {
	c := &Event{typ: e.typ}
	if len(e.values) > 0 {
		c.values = make(map[string]any, len(e.values))
		for k, v := range e.values {
			c.values[k] = v
		}
	}
	return c
}

// Merge returns a new event holding the union of the set fields of e and
// other. Both must be of the same type, and shared fields must agree.
func (e *Event) Merge(other *Event) (*Event, error) {
	if other == nil {
		return e.Clone(), nil
	}
	if e.typ != other.typ {
		return nil, fmt.Errorf("merge %s with %s: %w", e.typ.name, other.typ.name, ErrTypeMismatch)
	}
	merged := e.Clone()
	for _, f := range e.typ.fields {
		ov, ok := other.values[f.Name]
		if !ok {
			continue
		}
		if v, shared := e.values[f.Name]; shared {
			if !ValuesEqual(v, ov) {
				return nil, &MergeConflictError{Type: e.typ.name, Field: f.Name, Left: v, Right: ov}
			}
			continue
		}
		if merged.values == nil {
			merged.values = make(map[string]any, len(other.values))
		}
		merged.values[f.Name] = ov
	}
	return merged, nil
}

// String renders the event as Name(id, field=value, ...).
func (e *Event) String() string {
	var b strings.Builder
	b.WriteString(e.typ.ShortName())
	b.WriteByte('(')
	b.WriteString(strconv.Itoa(e.typ.id))
	for _, f := range e.typ.fields {
		v, ok := e.values[f.Name]
		if !ok {
			continue
		}
		b.WriteString(", ")
		b.WriteString(f.Name)
		b.WriteByte('=')
		if v == nil {
			b.WriteString("null")
		} else {
			fmt.Fprint(&b, v)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// ValuesEqual compares two field values. Null equals only null.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if Hashable(a) && Hashable(b) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Hashable reports whether v can be used as a map key without panicking.
func Hashable(v any) bool {
	if v == nil {
		return false
	}
	return isComparable(reflect.TypeOf(v))
}

func isComparable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return false
	case reflect.Array:
		return isComparable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isComparable(t.Field(i).Type) {
				return false
			}
		}
		return true
	case reflect.Interface:
		// Dynamic values stored in interface fields are not known here.
		return false
	}
	return t.Comparable()
}
