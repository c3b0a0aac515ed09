package liquid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/fluidity/liquid/internal/locale"
	"github.com/fluidity/liquid/lexer"
	"github.com/fluidity/liquid/naming"
)

// ErrorsOutputMode selects what happens to an error raised while rendering a
// node. The zero value means "use the engine's mode".
type ErrorsOutputMode int

const (
	// Display writes a placeholder message in place of the failing node and
	// continues rendering.
	Display ErrorsOutputMode = iota + 1

	// Rethrow aborts rendering and returns the error to the caller.
	Rethrow

	// Suppress drops the failing node's output and continues rendering.
	Suppress
)

func (m ErrorsOutputMode) String() string {
	switch m {
	case Display:
		return "display"
	case Rethrow:
		return "rethrow"
	case Suppress:
		return "suppress"
	default:
		return "default"
	}
}

// ParseErrorsOutputMode parses "display", "rethrow" or "suppress".
func ParseErrorsOutputMode(s string) (ErrorsOutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "display":
		return Display, nil
	case "rethrow":
		return Rethrow, nil
	case "suppress":
		return Suppress, nil
	}
	return 0, fmt.Errorf("unknown errors output mode %q", s)
}

// SyntaxCompatibility selects between legacy and modern filter semantics. The
// zero value means "use the engine's setting".
type SyntaxCompatibility int

const (
	// SyntaxModern is the current behavior and the default.
	SyntaxModern SyntaxCompatibility = iota + 1

	// SyntaxLegacy keeps the behavior of older Liquid versions: math filters
	// concatenate string input, replace_first and remove_first take regular
	// expressions and slice clamps a negative start to zero.
	SyntaxLegacy
)

func (s SyntaxCompatibility) String() string {
	switch s {
	case SyntaxModern:
		return "modern"
	case SyntaxLegacy:
		return "legacy"
	default:
		return "default"
	}
}

// ParseSyntaxCompatibility parses "modern" or "legacy".
func ParseSyntaxCompatibility(s string) (SyntaxCompatibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "modern", "liquid22":
		return SyntaxModern, nil
	case "legacy", "liquid20":
		return SyntaxLegacy, nil
	}
	return 0, fmt.Errorf("unknown syntax compatibility %q", s)
}

// TagFactory creates a fresh, uninitialized tag.
type TagFactory func() Tag

// Engine holds the tag, filter and safe-type registries together with the
// default render settings. An Engine is safe for concurrent rendering;
// registration while templates render is serialized by the engine but may
// be observed by renders already in progress.
type Engine struct {
	mu        sync.RWMutex
	tags      map[string]TagFactory
	rawTags   map[string]bool
	lexer     *lexer.Lexer
	filters   map[string][]*filterFunc
	safeTypes map[reflect.Type]*safeType
	ifaces    []ifaceTransformer

	templatesMu sync.RWMutex
	templates   map[string]*Template

	fs            FileSystem
	naming        naming.Convention
	mode          ErrorsOutputMode
	syntax        SyntaxCompatibility
	maxIterations int
	timeout       time.Duration
	locale        *locale.Locale
	strict        bool
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFileSystem sets the file system used by include and extends.
func WithFileSystem(fs FileSystem) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithNamingConvention sets how Go names are exposed to templates.
func WithNamingConvention(c naming.Convention) Option {
	return func(e *Engine) { e.naming = c }
}

// WithErrorsOutputMode sets the default errors output mode.
func WithErrorsOutputMode(m ErrorsOutputMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMaxIterations limits the number of loop iterations per render. Zero
// means unlimited.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

// WithTimeout limits the wall-clock duration of a render. Zero means no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLocale sets the culture used to parse numeric literals and print
// numbers.
func WithLocale(tag language.Tag) Option {
	return func(e *Engine) { e.locale = locale.ForTag(tag) }
}

// WithSyntax sets the default syntax compatibility.
func WithSyntax(s SyntaxCompatibility) Option {
	return func(e *Engine) { e.syntax = s }
}

// WithStrictVariables makes unresolved variables an error.
func WithStrictVariables(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the logger for render diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the standard tags and filters.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tags:      make(map[string]TagFactory),
		rawTags:   make(map[string]bool),
		filters:   make(map[string][]*filterFunc),
		safeTypes: make(map[reflect.Type]*safeType),
		templates: make(map[string]*Template),
		naming:    naming.Exact,
		mode:      Display,
		syntax:    SyntaxModern,
		locale:    locale.Invariant,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	registerDefaultTags(e)
	if err := e.AddFilters(StandardFilters{}); err != nil {
		panic(err)
	}
	return e
}

// AddTag registers a tag under name, replacing any previous registration.
func (e *Engine) AddTag(name string, factory TagFactory) {
	_, raw := factory().(RawBlock)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tags[name] = factory
	if raw {
		e.rawTags[name] = true
	} else {
		delete(e.rawTags, name)
	}
	e.lexer = nil
}

// AddTagType registers a tag type that can be constructed with new(T).
func AddTagType[T any, PT interface {
	*T
	Tag
}](e *Engine, name string) {
	e.AddTag(name, func() Tag { return PT(new(T)) })
}

func (e *Engine) tag(name string) (TagFactory, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.tags[name]
	return f, ok
}

func (e *Engine) tokenizer() *lexer.Lexer {
	e.mu.RLock()
	l := e.lexer
	e.mu.RUnlock()
	if l != nil {
		return l
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lexer == nil {
		names := make([]string, 0, len(e.rawTags))
		for name := range e.rawTags {
			names = append(names, name)
		}
		sort.Strings(names)
		e.lexer = lexer.New(names...)
	}
	return e.lexer
}

// NamingConvention returns the engine's naming convention.
func (e *Engine) NamingConvention() naming.Convention { return e.naming }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// FileSystem returns the engine's default file system, which may be nil.
func (e *Engine) FileSystem() FileSystem { return e.fs }

// Parse compiles template source.
func (e *Engine) Parse(source string) (*Template, error) {
	return e.ParseNamed("", source)
}

// ParseNamed compiles template source under a name used in error messages.
func (e *Engine) ParseNamed(name, source string) (*Template, error) {
	tokens, err := e.tokenizer().Tokenize(source)
	if err != nil {
		return nil, asError(err).WithName(name)
	}
	b := newBuilder(e, name, tokens)
	doc, err := b.parseDocument()
	if err != nil {
		return nil, asError(err).WithName(name)
	}
	return &Template{engine: e, name: name, source: source, root: doc}, nil
}

// AddTemplate compiles source and stores it under name, where include and
// extends find it before consulting the file system.
func (e *Engine) AddTemplate(name, source string) error {
	t, err := e.ParseNamed(name, source)
	if err != nil {
		return err
	}
	e.templatesMu.Lock()
	e.templates[name] = t
	e.templatesMu.Unlock()
	return nil
}

// GetTemplate returns a template stored with AddTemplate or loaded from the
// engine's file system.
func (e *Engine) GetTemplate(ctx context.Context, name string) (*Template, error) {
	e.templatesMu.RLock()
	t, ok := e.templates[name]
	e.templatesMu.RUnlock()
	if ok {
		return t, nil
	}
	if e.fs == nil {
		return nil, Errorf(ErrFileSystem, "Template '%s' not found", name)
	}
	return loadTemplate(ctx, e, e.fs, name)
}

func loadTemplate(ctx context.Context, e *Engine, fs FileSystem, name string) (*Template, error) {
	if tfs, ok := fs.(TemplateFileSystem); ok {
		t, err := tfs.GetCompiledTemplate(ctx, name)
		if err != nil {
			return nil, fileSystemError(name, err)
		}
		return t, nil
	}
	source, err := fs.ReadTemplate(ctx, name)
	if err != nil {
		return nil, fileSystemError(name, err)
	}
	return e.ParseNamed(name, source)
}

func fileSystemError(name string, err error) error {
	le := asError(err)
	if le.Kind != ErrRender {
		return le
	}
	return &Error{Kind: ErrFileSystem, Message: fmt.Sprintf("Error loading template '%s': %v", name, err), Err: err}
}

// NewContext creates a render context from the engine's defaults overlaid
// with p. It fails when one of the per-render filters cannot be registered.
func (e *Engine) NewContext(p RenderParameters) (*Context, error) {
	return newContext(e, p)
}
