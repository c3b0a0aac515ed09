package locale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeparators(t *testing.T) {
	en, err := New("en-US")
	require.NoError(t, err)
	assert.Equal(t, ".", en.DecimalSeparator())
	assert.Equal(t, ",", en.GroupSeparator())

	de, err := New("de-DE")
	require.NoError(t, err)
	assert.Equal(t, ",", de.DecimalSeparator())
	assert.Equal(t, ".", de.GroupSeparator())
}

func TestNewRejectsGarbage(t *testing.T) {
	_, err := New("not a tag!")
	assert.Error(t, err)

	l, err := New("")
	require.NoError(t, err)
	assert.Same(t, Invariant, l)
}

func TestParseFloat(t *testing.T) {
	de, err := New("de-DE")
	require.NoError(t, err)

	f, ok := de.ParseFloat("1.234,5")
	require.True(t, ok)
	assert.Equal(t, 1234.5, f)

	// not a valid grouping, so read with invariant rules
	f, ok = de.ParseFloat("2.5")
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	f, ok = Invariant.ParseFloat("-1,000.25")
	require.True(t, ok)
	assert.Equal(t, -1000.25, f)

	_, ok = Invariant.ParseFloat("1,00")
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	d, ok := Invariant.ParseDecimal("12345678901234567890.123")
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890.123", d.String())
}

func TestFormatFloat(t *testing.T) {
	de, err := New("de-DE")
	require.NoError(t, err)

	assert.Equal(t, "3,25", de.FormatFloat(3.25, 64))
	assert.Equal(t, "3.25", Invariant.FormatFloat(3.25, 64))
	assert.Equal(t, "2", Invariant.FormatFloat(2.0, 64))
	assert.Equal(t, "Infinity", Invariant.FormatFloat(math.Inf(1), 64))
	assert.Equal(t, "-Infinity", Invariant.FormatFloat(math.Inf(-1), 64))
	assert.Equal(t, "NaN", Invariant.FormatFloat(math.NaN(), 64))
}
