package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color int

const (
	red color = iota
	green
)

func (c color) String() string {
	if c == red {
		return "Red"
	}
	return "Green"
}

type tags []string

func (t tags) Items() []any {
	out := make([]any, len(t))
	for i, s := range t {
		out[i] = s
	}
	return out
}

type env map[string]string

func (e env) ContainsKey(key string) bool {
	_, ok := e[key]
	return ok
}

func (e env) Get(key string) any { return e[key] }

func TestTruthiness(t *testing.T) {
	assert.True(t, IsTruthy(0))
	assert.True(t, IsTruthy(""))
	assert.True(t, IsTruthy([]any{}))
	assert.False(t, IsTruthy(nil))
	assert.False(t, IsTruthy(false))
	var m map[string]any
	assert.False(t, IsTruthy(m))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(int32(1), 1.0))
	assert.True(t, Equal(green, "Green"))
	assert.True(t, Equal("Red", red))
	assert.False(t, Equal("true", true))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
	assert.False(t, Equal([]any{1, "a"}, []string{}))
	assert.True(t, Equal([]int{1, 2}, []any{int64(1), 2.0}))
}

func TestMarkers(t *testing.T) {
	assert.True(t, Equal("", Empty))
	assert.True(t, Equal(Blank, []any{}))
	assert.True(t, Equal(map[string]any{}, Empty))
	assert.False(t, Equal("x", Empty))
	assert.False(t, Equal(nil, Blank))
	assert.True(t, Equal(Blank, Empty))
}

func TestCompare(t *testing.T) {
	c, err := Compare(2, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = Compare("apple", "banana")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare("10", 9)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	now := time.Now()
	c, err = Compare(now, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = Compare(true, 1)
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("hello world", "lo w"))
	assert.True(t, Contains([]any{1, 2, 3}, 2.0))
	assert.True(t, Contains(map[string]any{"a": 1}, "a"))
	assert.True(t, Contains(tags{"x", "y"}, "y"))
	assert.False(t, Contains(nil, "a"))
	assert.False(t, Contains("abc", nil))
}

func TestHasKey(t *testing.T) {
	m := map[string]any{"a": 1, "b": nil}
	assert.True(t, HasKey(m, "a"))
	assert.True(t, HasKey(m, "b"))
	assert.False(t, HasKey(m, "c"))
	assert.False(t, HasKey(m, nil))
	assert.True(t, HasKey(map[int]string{2: "x"}, 2.0))
	assert.True(t, HasKey(env{"mode": "dark"}, "mode"))
	assert.False(t, HasKey(env{"mode": "dark"}, "theme"))
	assert.False(t, HasKey([]any{"a"}, "a"))
	assert.False(t, HasKey("abc", "a"))
	assert.False(t, HasKey(nil, "a"))
}

func TestHasValue(t *testing.T) {
	m := map[string]any{"a": 1, "b": "two"}
	assert.True(t, HasValue(m, 1.0))
	assert.True(t, HasValue(m, "two"))
	assert.False(t, HasValue(m, "a"))
	assert.False(t, HasValue(m, nil))
	assert.True(t, HasValue(map[string]any{"z": nil}, nil))
	assert.False(t, HasValue([]any{1}, 1))
	assert.False(t, HasValue("abc", "a"))
	assert.False(t, HasValue(nil, 1))
}

func TestIterate(t *testing.T) {
	items, ok := Iterate(map[string]any{"b": 2, "a": 1})
	require.True(t, ok)
	assert.Equal(t, []any{[]any{"a", 1}, []any{"b", 2}}, items)

	_, ok = Iterate("abc")
	assert.False(t, ok)

	items, ok = Iterate(Range{From: 1, To: 3})
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, items)
}

func TestWindow(t *testing.T) {
	items, ok := Window(Range{From: 1, To: 1000000}, 10, 2)
	require.True(t, ok)
	assert.Equal(t, []any{int64(11), int64(12)}, items)

	items, ok = Window([]int{1, 2, 3}, 5, -1)
	require.True(t, ok)
	assert.Empty(t, items)
}

func TestRangeIsEmptyWhenReversed(t *testing.T) {
	r := Range{From: 3, To: 1}
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, "3..1", r.String())
}

func TestLookup(t *testing.T) {
	v, ok := Lookup(map[string]any{"a": 1}, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = Lookup([]any{"x", "y"}, -1)
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = Lookup([]any{"x"}, "0")
	assert.False(t, ok)
}
