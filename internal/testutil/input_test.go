package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCases(t *testing.T) {
	cases, err := ParseCases([]byte(`
cases:
  - name: upcase
    template: "{{ s | upcase }}"
    vars: {s: abc}
    expected: ABC
  - name: include
    template: "{% include 'a' %}"
    settings:
      templates: {a: "x"}
    expected: x
`))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "abc", cases[0].Vars["s"])
	assert.Equal(t, "x", cases[1].Settings.Templates["a"])
}

func TestParseCasesRejectsDuplicates(t *testing.T) {
	_, err := ParseCases([]byte(`
cases:
  - {name: a, template: x, expected: x}
  - {name: a, template: y, expected: y}
`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("a", "a"))
	assert.Contains(t, Diff("a", "b"), "=== Actual ===\nb")
}
