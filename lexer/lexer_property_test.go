//go:build property

package lexer

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLexerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	piece := gen.OneConstOf(
		"text ", "\n", "{{ x }}", "{{ 'q}}' }}", "{% if a %}", "{% endif %}",
		"{%- assign b = 1 -%}", " {{- y -}} ", "{# note #}", "{% raw %}{{ }}{% endraw %}",
		"{{{ lit }}}",
	)

	properties.Property("tokens concatenate to the preprocessed source", prop.ForAll(
		func(parts []string) bool {
			var b strings.Builder
			for _, p := range parts {
				b.WriteString(p)
			}
			src := b.String()
			tokens, err := Tokenize(src)
			if err != nil {
				return false
			}
			var out strings.Builder
			for _, tok := range tokens {
				out.WriteString(tok.Value)
			}
			return out.String() == Preprocess(src)
		},
		gen.SliceOf(piece),
	))

	properties.Property("no token is empty", prop.ForAll(
		func(parts []string) bool {
			var b strings.Builder
			for _, p := range parts {
				b.WriteString(p)
			}
			tokens, err := Tokenize(b.String())
			if err != nil {
				return false
			}
			for _, tok := range tokens {
				if tok.Value == "" {
					return false
				}
			}
			return true
		},
		gen.SliceOf(piece),
	))

	properties.TestingRun(t)
}
