package value

import "strconv"

// -----------------------------------------------------------------------------
// Capability Interfaces
// -----------------------------------------------------------------------------
//
// Host types take part in rendering by implementing one or more of the
// interfaces below. None of them is required: plain maps, slices and
// primitives are understood without help.

// Indexable is a value that supports member access by key, as in
// {{ product.title }} or {{ product["title"] }}.
//
// Example:
//
//	type Settings struct{ m map[string]string }
//
//	func (s Settings) ContainsKey(key string) bool { _, ok := s.m[key]; return ok }
//	func (s Settings) Get(key string) any         { return s.m[key] }
type Indexable interface {
	// ContainsKey reports whether key can be looked up. The engine only calls
	// Get when ContainsKey returns true.
	ContainsKey(key string) bool

	// Get returns the member stored under key.
	Get(key string) any
}

// Liquidizable is implemented by host types that convert themselves to a
// template-safe value on demand. ToLiquid is called each time the value
// enters a render and may return a map, slice, primitive or Indexable.
type Liquidizable interface {
	ToLiquid() any
}

// ValueTypeConvertible lets a wrapper replace itself with a plain value
// before it is printed or passed to a filter.
type ValueTypeConvertible interface {
	ConvertToValueType() any
}

// Lookup performs member access on v. Maps with string keys, Indexable
// values and sequences indexed by integer keys are supported.
func Lookup(v any, key any) (any, bool) {
	switch c := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, false
		}
		r, found := c[k]
		return r, found
	case Indexable:
		k, ok := key.(string)
		if !ok {
			k = formatKey(key)
		}
		if !c.ContainsKey(k) {
			return nil, false
		}
		return c.Get(k), true
	}
	if i, ok := ToInt64(key); ok && IsNumber(key) {
		return Index(v, int(i))
	}
	return nil, false
}

// ConvertToValueType unwraps v if it implements ValueTypeConvertible.
func ConvertToValueType(v any) any {
	if c, ok := v.(ValueTypeConvertible); ok {
		return c.ConvertToValueType()
	}
	return v
}

// iterableFunc adapts a slice-producing function to Enumerable.
type iterableFunc func() []any

func (f iterableFunc) Items() []any { return f() }

// MakeIterable creates an Enumerable whose elements are produced by maker
// each time the value is iterated.
func MakeIterable(maker func() []any) Enumerable {
	return iterableFunc(maker)
}

func formatKey(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	if i, ok := ToInt64(key); ok {
		return strconv.FormatInt(i, 10)
	}
	return ""
}
