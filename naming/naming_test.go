package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnake(t *testing.T) {
	tests := map[string]string{
		"DividedBy":     "divided_by",
		"Upcase":        "upcase",
		"HTMLEscape":    "html_escape",
		"URLEncode":     "url_encode",
		"StripNewlines": "strip_newlines",
		"already_snake": "already_snake",
		"Md5":           "md5",
		"X":             "x",
	}
	for in, want := range tests {
		assert.Equal(t, want, Snake(in), in)
	}
}

func TestConventions(t *testing.T) {
	assert.True(t, Exact.Equal("upcase", "upcase"))
	assert.False(t, Exact.Equal("upcase", "Upcase"))

	assert.True(t, CaseInsensitive.Equal("UPCASE", "upcase"))
	assert.False(t, CaseInsensitive.Equal("up_case", "upcase"))

	assert.True(t, Permissive.Equal("UpCase", "up_case"))
	assert.True(t, Permissive.Equal("Straße", "STRASSE"))
}

func TestByName(t *testing.T) {
	c, ok := ByName("permissive")
	assert.True(t, ok)
	assert.Equal(t, "permissive", c.Name())

	c, ok = ByName("")
	assert.True(t, ok)
	assert.Equal(t, Exact, c)

	_, ok = ByName("klingon")
	assert.False(t, ok)
}
