// Package naming maps Go member names to the names templates use for them
// and decides when two template names refer to the same member.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Convention controls how Go identifiers are exposed to templates.
type Convention interface {
	// Name identifies the convention in configuration.
	Name() string

	// MemberName returns the template name for a Go field, method or filter
	// function name.
	MemberName(goName string) string

	// Equal reports whether two template names denote the same member.
	Equal(a, b string) bool
}

// Exact exposes members in snake_case and compares names exactly. This is the
// default convention.
var Exact Convention = exact{}

// CaseInsensitive exposes members in snake_case and compares names with
// Unicode case folding.
var CaseInsensitive Convention = caseInsensitive{}

// Permissive exposes members in snake_case and compares names ignoring case
// and underscores, so upcase, UpCase and up_case are the same name.
var Permissive Convention = permissive{}

// ByName returns the convention with the given name.
func ByName(name string) (Convention, bool) {
	switch strings.ToLower(name) {
	case "", "exact", "ruby", "snake":
		return Exact, true
	case "case_insensitive", "insensitive":
		return CaseInsensitive, true
	case "permissive", "csharp":
		return Permissive, true
	}
	return nil, false
}

type exact struct{}

func (exact) Name() string                    { return "exact" }
func (exact) MemberName(goName string) string { return Snake(goName) }
func (exact) Equal(a, b string) bool          { return a == b }

type caseInsensitive struct{}

func (caseInsensitive) Name() string                    { return "case_insensitive" }
func (caseInsensitive) MemberName(goName string) string { return Snake(goName) }
func (caseInsensitive) Equal(a, b string) bool          { return fold(a) == fold(b) }

type permissive struct{}

func (permissive) Name() string                    { return "permissive" }
func (permissive) MemberName(goName string) string { return Snake(goName) }
func (permissive) Equal(a, b string) bool {
	return fold(strings.ReplaceAll(a, "_", "")) == fold(strings.ReplaceAll(b, "_", ""))
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Snake converts a Go identifier to snake_case. Runs of capitals are treated
// as one word, so HTMLEscape becomes html_escape and DividedBy becomes
// divided_by.
func Snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
