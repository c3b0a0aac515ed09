// Package value implements the value semantics shared by the template engine.
//
// Template data is carried as plain Go values (any). This package answers the
// questions the engine keeps asking about them: what kind of value is this, is
// it truthy, can it be iterated, how do two values compare, and how do two
// numbers of different representations combine arithmetically.
//
// # Kinds
//
// Every value falls into one of the kinds below:
//   - Nil: the absence of a value (nil)
//   - Bool: true or false
//   - Number: any Go integer or float type, or a decimal.Decimal
//   - String: text
//   - Time: time.Time and time.Duration
//   - Seq: slices, arrays, ranges and Enumerable implementations
//   - Map: maps of any key type
//   - Other: everything else (structs, capability objects, markers)
//
// # Truthiness
//
// Only nil and false are falsy. Zero, the empty string and empty collections
// are all truthy, which is the rule templates are written against:
//
//	value.IsTruthy(0)        // true
//	value.IsTruthy("")       // true
//	value.IsTruthy(nil)      // false
//
// # Numbers
//
// Arithmetic between heterogeneous numeric types goes through Arith, which
// promotes both operands to a common representation first. See numeric.go.
package value

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind describes the broad category of a template value.
type Kind int

const (
	// KindNil is the absence of a value.
	KindNil Kind = iota

	// KindBool is a boolean.
	KindBool

	// KindNumber is any integer, floating point or decimal number.
	KindNumber

	// KindString is text.
	KindString

	// KindTime is a point in time or a duration.
	KindTime

	// KindSeq is an ordered, iterable collection.
	KindSeq

	// KindMap is a key/value collection.
	KindMap

	// KindOther is any value without a dedicated kind.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return "object"
	}
}

// Enumerable is implemented by custom collections that want to be iterated by
// templates the same way slices are.
//
// Example implementation:
//
//	type Tags struct{ names []string }
//
//	func (t Tags) Items() []any {
//	    out := make([]any, len(t.names))
//	    for i, n := range t.names {
//	        out[i] = n
//	    }
//	    return out
//	}
type Enumerable interface {
	// Items returns the elements of the collection in iteration order.
	Items() []any
}

// KindOf returns the kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNil
	case bool:
		return KindBool
	case string:
		return KindString
	case time.Time, time.Duration:
		return KindTime
	case decimal.Decimal:
		return KindNumber
	case Range, Enumerable, []any:
		return KindSeq
	case map[string]any:
		return KindMap
	}
	if _, ok := NumberKindOf(v); ok {
		return KindNumber
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Slice, reflect.Array:
		return KindSeq
	case reflect.Map:
		return KindMap
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNil
		}
	}
	return KindOther
}

// IsNil reports whether v is nil, including typed nil pointers, maps and
// slices stored in an interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// IsTruthy reports whether v counts as true in a condition. Only nil and
// false are falsy.
func IsTruthy(v any) bool {
	if IsNil(v) {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// IsEnumerable reports whether v can be iterated. Strings count as
// enumerable so that the empty string compares equal to the empty marker.
func IsEnumerable(v any) bool {
	if IsNil(v) {
		return false
	}
	switch v.(type) {
	case string, Range, Enumerable, []any, map[string]any:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return true
	}
	return false
}

// Len returns the number of elements of an enumerable value, or the length
// in runes of a string.
func Len(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case string:
		return len([]rune(t)), true
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	case Range:
		return t.Len(), true
	case Enumerable:
		return len(t.Items()), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	case reflect.String:
		return len([]rune(rv.String())), true
	}
	return 0, false
}

// IsEmptyEnumerable reports whether v is enumerable and has no elements.
func IsEmptyEnumerable(v any) bool {
	if !IsEnumerable(v) {
		return false
	}
	n, _ := Len(v)
	return n == 0
}

// Iterate returns the elements of v in iteration order. Maps iterate as
// two-element [key, value] pairs sorted by key. Strings are not iterated;
// callers that loop over a string treat it as a single element.
func Iterate(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case Range:
		return t.Items(), true
	case Enumerable:
		return t.Items(), true
	case map[string]any:
		return mapPairs(reflect.ValueOf(t)), true
	case string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		return mapPairs(rv), true
	}
	return nil, false
}

// Window returns at most limit elements of v starting at offset. A negative
// limit means no limit. Ranges are windowed without materializing the
// elements outside the window.
func Window(v any, offset, limit int) ([]any, bool) {
	if offset < 0 {
		offset = 0
	}
	if r, ok := v.(Range); ok {
		return r.Window(offset, limit), true
	}
	items, ok := Iterate(v)
	if !ok {
		return nil, false
	}
	if offset >= len(items) {
		return []any{}, true
	}
	end := len(items)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], true
}

func mapPairs(rv reflect.Value) []any {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = []any{k.Interface(), rv.MapIndex(k).Interface()}
	}
	return out
}

// Index returns the element at position i of a sequence. Negative indexes
// count from the end.
func Index(v any, i int) (any, bool) {
	if r, ok := v.(Range); ok {
		return r.At(i)
	}
	if items, ok := v.([]any); ok {
		if i < 0 {
			i += len(items)
		}
		if i < 0 || i >= len(items) {
			return nil, false
		}
		return items[i], true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if i < 0 {
			i += rv.Len()
		}
		if i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	if e, ok := v.(Enumerable); ok {
		return Index(e.Items(), i)
	}
	return nil, false
}

// IsEnum reports whether v is a named integer type with a String method,
// which is how Go code models enumerations.
func IsEnum(v any) bool {
	if _, ok := v.(fmt.Stringer); !ok {
		return false
	}
	t := reflect.TypeOf(v)
	if t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
