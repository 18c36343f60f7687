package event

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
)

// Event type ids are unique for the lifetime of the process, across registries.
var nextTypeID atomic.Int64

// FieldType is the declared type of an event field.
type FieldType struct {
	name  string
	rtype reflect.Type // nil accepts any value
	enum  *Enum
}

// Built-in field types.
var (
	String  = TypeOf[string]()
	Int     = TypeOf[int]()
	Int64   = TypeOf[int64]()
	Float   = TypeOf[float64]()
	Bool    = TypeOf[bool]()
	Strings = TypeOf[[]string]()
	Any     = FieldType{name: "any"}
)

// TypeOf returns a field type accepting values assignable to T.
func TypeOf[T any]() FieldType {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Interface && rt.NumMethod() == 0 {
		return Any
	}
	return FieldType{name: rt.String(), rtype: rt}
}

// EnumOf returns a field type holding values of e.
// Assigning the symbolic name of a value as a string is coerced.
func EnumOf(e *Enum) FieldType {
	return FieldType{name: e.name, rtype: reflect.TypeFor[EnumValue](), enum: e}
}

// String returns the type name.
func (f FieldType) String() string {
	return f.name
}

// Hashable reports whether every value of this type can be used as an index key.
func (f FieldType) Hashable() bool {
	if f.enum != nil {
		return true
	}
	if f.rtype == nil || f.rtype.Kind() == reflect.Interface {
		return false
	}
	return f.rtype.Comparable()
}

// coerce validates v against the field type. A nil value is always
// accepted: it is the explicit null.
func (f FieldType) coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.enum != nil {
		switch ev := v.(type) {
		case EnumValue:
			if ev.enum != f.enum {
				return nil, fmt.Errorf("value %s belongs to enum %s, expected %s", ev, ev.enum.name, f.enum.name)
			}
			return ev, nil
		case string:
			val, ok := f.enum.Value(ev)
			if !ok {
				return nil, fmt.Errorf("%q is not a value of enum %s", ev, f.enum.name)
			}
			return val, nil
		}
		return nil, fmt.Errorf("expected enum %s, found %v (%T)", f.enum.name, v, v)
	}
	if f.rtype == nil {
		return v, nil
	}
	if !reflect.TypeOf(v).AssignableTo(f.rtype) {
		return nil, fmt.Errorf("expected type %s, found %v (%T)", f.rtype, v, v)
	}
	return v, nil
}

// Enum is a closed set of symbolic values.
type Enum struct {
	name   string
	values []EnumValue
	byName map[string]EnumValue
}

// EnumValue is one member of an Enum. It is comparable and hashable.
type EnumValue struct {
	enum    *Enum
	name    string
	ordinal int
}

// NewEnum creates an enum with the given member names, in order.
func NewEnum(name string, names ...string) *Enum {
	e := &Enum{
		name:   name,
		byName: make(map[string]EnumValue, len(names)),
	}
	for i, n := range names {
		v := EnumValue{enum: e, name: n, ordinal: i}
		e.values = append(e.values, v)
		e.byName[n] = v
	}
	return e
}

// Name returns the enum name.
func (e *Enum) Name() string { return e.name }

// Values returns the members in declaration order.
func (e *Enum) Values() []EnumValue {
	out := make([]EnumValue, len(e.values))
	copy(out, e.values)
	return out
}

// Value looks up a member by name.
func (e *Enum) Value(name string) (EnumValue, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// MustValue looks up a member by name and panics if it does not exist.
func (e *Enum) MustValue(name string) EnumValue {
	v, ok := e.byName[name]
	if !ok {
		panic(fmt.Sprintf("enum %s has no value %q", e.name, name))
	}
	return v
}

// Name returns the symbolic name.
func (v EnumValue) Name() string { return v.name }

// Ordinal returns the declaration index.
func (v EnumValue) Ordinal() int { return v.ordinal }

// String returns the symbolic name.
func (v EnumValue) String() string { return v.name }

// Field is one declared parameter of an event type.
type Field struct {
	Name string
	Type FieldType
}

// F is shorthand for constructing a Field.
func F(name string, typ FieldType) Field {
	return Field{Name: name, Type: typ}
}

// Type is an immutable event type descriptor.
type Type struct {
	name      string
	id        int
	fields    []Field
	index     map[string]int
	indexable bool
}

func newType(name string, fields []Field) (*Type, error) {
	t := &Type{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(t.fields, fields)
	for i, f := range fields {
		if f.Name == "" {
			return nil, &SchemaError{Type: name, Field: "<empty>", Message: "field name cannot be empty"}
		}
		if _, dup := t.index[f.Name]; dup {
			return nil, &SchemaError{Type: name, Field: f.Name, Message: "field declared twice"}
		}
		t.index[f.Name] = i
		if f.Type.Hashable() {
			t.indexable = true
		}
	}
	t.id = int(nextTypeID.Add(1))
	return t, nil
}

// Name returns the fully qualified type name.
func (t *Type) Name() string { return t.name }

// ID returns the process-unique numeric identity.
func (t *Type) ID() int { return t.id }

// ShortName returns the name without its group prefix.
func (t *Type) ShortName() string {
	if i := strings.LastIndexByte(t.name, '.'); i >= 0 {
		return t.name[i+1:]
	}
	return t.name
}

// Fields returns the declared fields in order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// NumFields returns the number of declared fields.
func (t *Type) NumFields() int { return len(t.fields) }

// Field returns the declared field with the given name.
func (t *Type) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// HasField reports whether name is a declared field.
func (t *Type) HasField(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Indexable reports whether at least one field type is hashable.
func (t *Type) Indexable() bool { return t.indexable }

// New returns an event of this type with no fields set.
func (t *Type) New() *Event {
	return &Event{typ: t}
}

// Make returns an event with the given fields set.
func (t *Type) Make(fields map[string]any) (*Event, error) {
	e := t.New()
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := e.Set(k, fields[k]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustMake is like Make but panics on schema errors.
func (t *Type) MustMake(fields map[string]any) *Event {
	e, err := t.Make(fields)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the type name.
func (t *Type) String() string { return t.name }
