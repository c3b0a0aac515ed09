package value

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Equal reports whether two values are equal under template semantics.
//
// Numbers compare by value regardless of their representation, so int32(1)
// equals float64(1.0). An enumeration equals the string of its name. The
// blank and empty markers equal any enumerable with no elements. Strings are
// never coerced to booleans: "true" does not equal true.
func Equal(a, b any) bool {
	if m, ok := a.(Marker); ok {
		return MatchesMarker(m, b)
	}
	if m, ok := b.(Marker); ok {
		return MatchesMarker(m, a)
	}
	an, bn := IsNil(a), IsNil(b)
	if an || bn {
		return an && bn
	}
	if c, ok := CompareNumbers(a, b); ok {
		return c == 0
	}
	if IsEnum(a) {
		if s, ok := b.(string); ok {
			return a.(fmt.Stringer).String() == s
		}
	}
	if IsEnum(b) {
		if s, ok := a.(string); ok {
			return b.(fmt.Stringer).String() == s
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case Range:
		if y, ok := b.(Range); ok {
			return x == y
		}
	}
	if KindOf(a) == KindSeq && KindOf(b) == KindSeq {
		xs, _ := Iterate(a)
		ys, _ := Iterate(b)
		if len(xs) != len(ys) {
			return false
		}
		for i := range xs {
			if !Equal(xs[i], ys[i]) {
				return false
			}
		}
		return true
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values. Numbers compare numerically, strings
// ordinally, and times chronologically. A number and a string compare when
// the string parses as a number. Any other pair cannot be ordered.
func Compare(a, b any) (int, error) {
	if c, ok := CompareNumbers(a, b); ok {
		return c, nil
	}
	switch x := a.(type) {
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), nil
		default:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && IsNumber(b) {
				if c, ok := CompareNumbers(f, b); ok {
					return c, nil
				}
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	case time.Duration:
		if y, ok := b.(time.Duration); ok {
			return cmpOrdered(int64(x), int64(y)), nil
		}
	}
	if s, ok := b.(string); ok && IsNumber(a) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			if c, ok := CompareNumbers(a, f); ok {
				return c, nil
			}
		}
	}
	return 0, fmt.Errorf("comparison of %s with %s failed", describe(a), describe(b))
}

// Contains reports whether container holds item. Strings are searched for
// substrings, maps for keys and sequences for an element equal to item.
func Contains(container, item any) bool {
	if IsNil(container) || IsNil(item) {
		return false
	}
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			s = fmt.Sprint(item)
		}
		return strings.Contains(c, s)
	case map[string]any:
		k, ok := item.(string)
		if !ok {
			return false
		}
		_, found := c[k]
		return found
	}
	if rv := reflect.ValueOf(container); rv.Kind() == reflect.Map {
		for _, k := range rv.MapKeys() {
			if Equal(k.Interface(), item) {
				return true
			}
		}
		return false
	}
	items, ok := Iterate(container)
	if !ok {
		return false
	}
	for _, it := range items {
		if Equal(it, item) {
			return true
		}
	}
	return false
}

// HasValue reports whether a map contains item among its values.
func HasValue(container, item any) bool {
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Map {
		return false
	}
	iter := rv.MapRange()
	for iter.Next() {
		if Equal(iter.Value().Interface(), item) {
			return true
		}
	}
	return false
}

// HasKey reports whether a map or Indexable has the given key.
func HasKey(container, key any) bool {
	if c, ok := container.(Indexable); ok && !IsNil(key) {
		return c.ContainsKey(formatKey(key))
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Map || IsNil(key) {
		return false
	}
	for _, k := range rv.MapKeys() {
		if Equal(k.Interface(), key) {
			return true
		}
	}
	return false
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v (%T)", v, v)
}
