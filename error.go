package liquid

import (
	"errors"
	"fmt"

	"github.com/fluidity/liquid/lexer"
	"github.com/fluidity/liquid/value"
)

// ErrorKind describes the type of error.
//
// ErrorKind implements error so callers can test for a kind with errors.Is:
//
//	if errors.Is(err, liquid.ErrMaxIterations) { ... }
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrVariableNotFound
	ErrFilterNotFound
	ErrArgument
	ErrUnsafeType
	ErrRender
	ErrFileSystem
	ErrMaxIterations
	ErrTimeout
	ErrStackLevel
	ErrDivisionByZero
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrVariableNotFound:
		return "variable not found"
	case ErrFilterNotFound:
		return "filter not found"
	case ErrArgument:
		return "argument error"
	case ErrUnsafeType:
		return "unsafe type"
	case ErrRender:
		return "render error"
	case ErrFileSystem:
		return "file system error"
	case ErrMaxIterations:
		return "maximum iterations exceeded"
	case ErrTimeout:
		return "render timed out"
	case ErrStackLevel:
		return "stack level too deep"
	case ErrDivisionByZero:
		return "division by zero"
	default:
		return "error"
	}
}

func (k ErrorKind) Error() string { return k.String() }

// Error represents an error that occurred during template processing.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int    // 1-based source line, 0 if unknown
	Name    string // template name, if any
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Line > 0:
		return fmt.Sprintf("%s: %s (at %s line %d)", e.Kind, e.Message, e.Name, e.Line)
	case e.Line > 0:
		return fmt.Sprintf("%s: %s (at line %d)", e.Kind, e.Message, e.Line)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches an ErrorKind target against the error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithLine adds line information to an error unless it already has some.
func (e *Error) WithLine(line int) *Error {
	if e.Line == 0 {
		e.Line = line
	}
	return e
}

// WithName adds template name to an error.
func (e *Error) WithName(name string) *Error {
	if e.Name == "" {
		e.Name = name
	}
	return e
}

// IsRuntimeLimit reports whether err is caused by an iteration ceiling,
// deadline or nesting limit. Such errors are never suppressed by the
// errors output mode.
func IsRuntimeLimit(err error) bool {
	return errors.Is(err, ErrMaxIterations) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrStackLevel)
}

// asError converts any error into an *Error, classifying errors produced by
// sub-packages.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return &Error{Kind: ErrSyntax, Message: lexErr.Message, Line: lexErr.Line, Err: err}
	}
	if errors.Is(err, value.ErrDivisionByZero) {
		return &Error{Kind: ErrDivisionByZero, Message: err.Error(), Err: err}
	}
	return &Error{Kind: ErrRender, Message: err.Error(), Err: err}
}
