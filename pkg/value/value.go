// Package value implements the tagged Value sum type shared by facts,
// conditions, and actions across the rule engine.
package value

import "fmt"

// Kind identifies the concrete type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindExpr
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindExpr:
		return "expr"
	default:
		return "unknown"
	}
}

// Value is the tagged sum type every fact field and literal in the engine
// is expressed as. Concrete variants are the unexported wrapper types below;
// construct them with the New* helpers.
type Value interface {
	Kind() Kind
	// Raw returns the underlying Go value (nil, bool, int64, float64,
	// string, []Value, or *Object) for interop with host code and JSON
	// marshaling.
	Raw() any
	String() string
}

// Null is the absence of a value.
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) Raw() any       { return nil }
func (Null) String() string { return "null" }

// Bool wraps a boolean.
type Bool bool

func (b Bool) Kind() Kind     { return KindBool }
func (b Bool) Raw() any       { return bool(b) }
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Int wraps a 64-bit signed integer.
type Int int64

func (i Int) Kind() Kind     { return KindInt }
func (i Int) Raw() any       { return int64(i) }
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

// Float wraps a 64-bit IEEE float.
type Float float64

func (f Float) Kind() Kind     { return KindFloat }
func (f Float) Raw() any       { return float64(f) }
func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }

// Str wraps a string.
type Str string

func (s Str) Kind() Kind     { return KindString }
func (s Str) Raw() any       { return string(s) }
func (s Str) String() string { return string(s) }

// Array wraps an ordered list of Values.
type Array []Value

func (a Array) Kind() Kind { return KindArray }
func (a Array) Raw() any {
	raw := make([]any, len(a))
	for i, v := range a {
		raw[i] = v.Raw()
	}
	return raw
}
func (a Array) String() string { return fmt.Sprintf("%v", []Value(a)) }

// Object wraps a field-name -> Value mapping. Insertion order is preserved
// via Keys so that callers needing deterministic iteration (e.g. flat-view
// rendering) don't depend on Go map order.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject creates an empty, order-preserving Object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set assigns a field, appending to Keys() if the field is new.
func (o *Object) Set(name string, v Value) {
	if _, exists := o.fields[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.fields[name] = v
}

// Get returns a field and whether it was present.
func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Keys returns field names in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Object) Kind() Kind { return KindObject }
func (o *Object) Raw() any {
	raw := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		raw[k] = v.Raw()
	}
	return raw
}
func (o *Object) String() string { return fmt.Sprintf("%v", o.Raw()) }

// Expr wraps an uninterpreted expression string for later evaluation by the
// backward engine or pattern engine.
type Expr string

func (e Expr) Kind() Kind     { return KindExpr }
func (e Expr) Raw() any       { return string(e) }
func (e Expr) String() string { return string(e) }

// FromRaw lifts a plain Go value (as produced by encoding/json unmarshaling,
// or supplied directly by a host) into a Value.
func FromRaw(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null{}
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return Str(v)
	case []any:
		arr := make(Array, len(v))
		for i, e := range v {
			arr[i] = FromRaw(e)
		}
		return arr
	case []Value:
		return Array(v)
	case map[string]any:
		obj := NewObject()
		for k, e := range v {
			obj.Set(k, FromRaw(e))
		}
		return obj
	default:
		return Str(fmt.Sprintf("%v", v))
	}
}
