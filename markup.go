package liquid

import "regexp"

const quotedFragment = `"[^"]*"|'[^']*'|(?:[^\s,\|'"]|"[^"]*"|'[^']*')+`

var (
	quotedFragmentRe = regexp.MustCompile(quotedFragment)
	attributeRe      = regexp.MustCompile(`([\w-]+)\s*:\s*(` + quotedFragment + `)`)
	tagRe            = regexp.MustCompile(`(?s)^\{%-?\s*(\w+)\s*(.*?)-?%\}$`)
	variableRe       = regexp.MustCompile(`(?s)^\{\{-?(.*?)-?\}\}$`)
	filterNameRe     = regexp.MustCompile(`^\s*([\w-]+)`)
)

// splitOutsideQuotes splits s at every sep that is not inside a quoted span.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// indexOutsideQuotes returns the index of the first sep outside quotes.
func indexOutsideQuotes(s string, sep byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			return i
		}
	}
	return -1
}

// fragments returns the quoted fragments of markup in order.
func fragments(markup string) []string {
	return quotedFragmentRe.FindAllString(markup, -1)
}

// attributes returns the key: value pairs found in markup. Keys keep their
// spelling; callers compare them through the naming convention.
func attributes(markup string) [][2]string {
	var out [][2]string
	for _, m := range attributeRe.FindAllStringSubmatch(markup, -1) {
		out = append(out, [2]string{m[1], m[2]})
	}
	return out
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// words splits markup at whitespace that is not inside a quoted span.
func words(markup string) []string {
	var out []string
	var quote byte
	start := -1
	for i := 0; i < len(markup); i++ {
		c := markup[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if start >= 0 {
				out = append(out, markup[start:i])
				start = -1
			}
			continue
		case c == '"' || c == '\'':
			quote = c
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, markup[start:])
	}
	return out
}
