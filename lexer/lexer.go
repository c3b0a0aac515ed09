// Package lexer splits Liquid template source into literal, tag and
// variable tokens.
package lexer

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	literalShorthand = regexp.MustCompile(`(?s)\{\{\{(.*?)\}\}\}`)
	commentShorthand = regexp.MustCompile(`(?s)\{#(.*?)#\}`)
	trimAfter        = regexp.MustCompile(`-(\}\}|%\})(\r?\n|[ \t]+)?`)
	trimBefore       = regexp.MustCompile(`([ \t]+)?(\{\{|\{%)-`)
	tagName          = regexp.MustCompile(`^\{%\s*(\w+)`)
)

// Preprocess applies the rewrites that happen before tokenization: the
// {{{ x }}} and {# x #} shorthands become literal and comment tags, and a
// hyphen inside a delimiter strips the adjacent whitespace. After a closing
// delimiter that is either one line break or a run of spaces and tabs.
func Preprocess(source string) string {
	source = literalShorthand.ReplaceAllString(source, "{% literal %}${1}{% endliteral %}")
	source = commentShorthand.ReplaceAllString(source, "{% comment %}${1}{% endcomment %}")
	source = trimAfter.ReplaceAllString(source, "${1}")
	source = trimBefore.ReplaceAllString(source, "${2}")
	return source
}

// Lexer tokenizes preprocessed template source.
type Lexer struct {
	rawEnds map[string]*regexp.Regexp
}

// New creates a Lexer that treats the named tags as raw: everything between
// such a tag and its end tag is returned as a single literal token.
func New(rawTags ...string) *Lexer {
	l := &Lexer{rawEnds: make(map[string]*regexp.Regexp, len(rawTags))}
	for _, name := range rawTags {
		l.rawEnds[name] = regexp.MustCompile(`\{%-?\s*end` + regexp.QuoteMeta(name) + `\s*-?%\}`)
	}
	return l
}

// Tokenize preprocesses and tokenizes source with the default raw tags.
func Tokenize(source string) ([]Token, error) {
	return New(DefaultRawTags()...).Tokenize(source)
}

// Error is a structural error found while tokenizing.
type Error struct {
	Message string
	Line    int
}

func (e *Error) Error() string {
	return e.Message
}

// Tokenize preprocesses source and splits it into tokens.
func (l *Lexer) Tokenize(source string) ([]Token, error) {
	src := Preprocess(source)
	s := &scanner{src: src, line: 1}
	for s.pos < len(src) {
		start := nextOpening(src, s.pos)
		if start < 0 {
			s.emit(TokenLiteral, len(src))
			break
		}
		if start > s.pos {
			s.emit(TokenLiteral, start)
		}
		typ, closer := TokenVariable, VariableEnd
		if strings.HasPrefix(src[start:], TagStart) {
			typ, closer = TokenTag, TagEnd
		}
		end, err := s.findClose(start+2, closer)
		if err != nil {
			return nil, err
		}
		tok := s.emit(typ, end)
		if typ != TokenTag {
			continue
		}
		m := tagName.FindStringSubmatch(tok.Value)
		if m == nil {
			continue
		}
		endRe, raw := l.rawEnds[m[1]]
		if !raw {
			continue
		}
		loc := endRe.FindStringIndex(src[s.pos:])
		if loc == nil {
			return nil, &Error{Message: fmt.Sprintf("%s tag was never closed", m[1]), Line: tok.Line}
		}
		if loc[0] > 0 {
			s.emit(TokenLiteral, s.pos+loc[0])
		}
		s.emit(TokenTag, s.pos+loc[1]-loc[0])
	}
	return s.tokens, nil
}

type scanner struct {
	src    string
	pos    int
	line   int
	tokens []Token
}

func (s *scanner) emit(typ TokenType, end int) Token {
	tok := Token{Type: typ, Value: s.src[s.pos:end], Line: s.line}
	s.tokens = append(s.tokens, tok)
	s.line += strings.Count(tok.Value, "\n")
	s.pos = end
	return tok
}

// findClose returns the offset just past closer, skipping over quoted spans.
func (s *scanner) findClose(from int, closer string) (int, error) {
	src := s.src
	for i := from; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'':
			j := strings.IndexByte(src[i+1:], c)
			if j < 0 {
				return 0, &Error{
					Message: fmt.Sprintf("Quoted fragment in '%s' was not terminated with %c", fragment(src[s.pos:]), c),
					Line:    s.line,
				}
			}
			i += j + 1
		default:
			if strings.HasPrefix(src[i:], closer) {
				return i + len(closer), nil
			}
		}
	}
	kind := "Variable"
	if closer == TagEnd {
		kind = "Tag"
	}
	return 0, &Error{
		Message: fmt.Sprintf("%s '%s' was not properly terminated with '%s'", kind, fragment(src[s.pos:]), closer),
		Line:    s.line,
	}
}

func nextOpening(src string, from int) int {
	v := strings.Index(src[from:], VariableStart)
	t := strings.Index(src[from:], TagStart)
	switch {
	case v < 0 && t < 0:
		return -1
	case v < 0:
		return from + t
	case t < 0:
		return from + v
	case v < t:
		return from + v
	default:
		return from + t
	}
}

func fragment(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
