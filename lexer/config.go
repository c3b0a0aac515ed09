package lexer

const (
	TagStart      = "{%"
	TagEnd        = "%}"
	VariableStart = "{{"
	VariableEnd   = "}}"
)

// DefaultRawTags returns the names of the built-in tags whose bodies are
// never tokenized.
func DefaultRawTags() []string {
	return []string{"comment", "raw", "literal"}
}
