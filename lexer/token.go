package lexer

import "fmt"

// TokenType represents the type of a token.
type TokenType int

const (
	// TokenLiteral is plain template text, or the opaque body of a raw tag.
	TokenLiteral TokenType = iota

	// TokenTag is a complete {% ... %} construct.
	TokenTag

	// TokenVariable is a complete {{ ... }} construct.
	TokenVariable
)

func (t TokenType) String() string {
	switch t {
	case TokenLiteral:
		return "LITERAL"
	case TokenTag:
		return "TAG"
	case TokenVariable:
		return "VARIABLE"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Token is a classified span of the preprocessed source. Value holds the
// span verbatim, delimiters included.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Value, t.Line)
}
