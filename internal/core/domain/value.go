package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// =============================================================================
// Attribute Values
// =============================================================================

// Value is an attribute value inside a plan. It is one of Literal, Ref,
// VarRef, List, Map, Template or Null.
type Value interface {
	isValue()
}

// Literal is a string, integer, float or boolean constant.
type Literal struct {
	V any
}

// String returns a string literal.
func String(s string) Literal { return Literal{V: s} }

// Int returns an integer literal.
func Int(n int) Literal { return Literal{V: n} }

// Bool returns a boolean literal.
func Bool(b bool) Literal { return Literal{V: b} }

// Strings returns a list of string literals.
func Strings(items ...string) List {
	out := make(List, len(items))
	for i, s := range items {
		out[i] = String(s)
	}
	return out
}

// Ref points at an attribute of another resource in the same plan.
// Attribute is a dotted path; numeric steps are list indexes, so
// "network_interface.0.access_config.0.nat_ip" is valid.
type Ref struct {
	Resource  string
	Attribute string
}

// Path splits the attribute path into its steps.
func (r Ref) Path() []string {
	return strings.Split(r.Attribute, ".")
}

func (r Ref) String() string {
	return r.Resource + "." + r.Attribute
}

// VarRef points at a declared input variable.
type VarRef struct {
	Name string
}

// List is an ordered sequence of values.
type List []Value

// Map is a string-keyed mapping of values.
type Map map[string]Value

// Keys returns the map keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Template is a string built by concatenating literal text with references.
// Parts are string Literals, Refs or VarRefs.
type Template []Value

// Null is the absence of a value.
type Null struct{}

func (Literal) isValue()  {}
func (Ref) isValue()      {}
func (VarRef) isValue()   {}
func (List) isValue()     {}
func (Map) isValue()      {}
func (Template) isValue() {}
func (Null) isValue()     {}

// =============================================================================
// Walking
// =============================================================================

// Walk calls fn for v and every value nested inside it, depth first.
func Walk(v Value, fn func(Value)) {
	if v == nil {
		return
	}
	fn(v)
	switch t := v.(type) {
	case List:
		for _, item := range t {
			Walk(item, fn)
		}
	case Template:
		for _, part := range t {
			Walk(part, fn)
		}
	case Map:
		for _, k := range t.Keys() {
			Walk(t[k], fn)
		}
	}
}

// RefsIn returns every Ref nested in v, in walk order.
func RefsIn(v Value) []Ref {
	var refs []Ref
	Walk(v, func(x Value) {
		if r, ok := x.(Ref); ok {
			refs = append(refs, r)
		}
	})
	return refs
}

// VarRefsIn returns every VarRef nested in v, in walk order.
func VarRefsIn(v Value) []VarRef {
	var refs []VarRef
	Walk(v, func(x Value) {
		if r, ok := x.(VarRef); ok {
			refs = append(refs, r)
		}
	})
	return refs
}

// =============================================================================
// JSON
// =============================================================================

// Values marshal to a tagged form so that plan.json keeps references
// distinguishable from literal strings.

func (l Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.V)
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"ref": r.String()})
}

func (r VarRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"var": r.Name})
}

func (t Template) MarshalJSON() ([]byte, error) {
	parts := make([]Value, len(t))
	copy(parts, t)
	return json.Marshal(map[string][]Value{"template": parts})
}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}
