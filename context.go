package liquid

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/text/language"

	"github.com/fluidity/liquid/internal/locale"
	"github.com/fluidity/liquid/naming"
)

// maxScopeDepth bounds nesting of scopes, which also bounds recursive
// includes.
const maxScopeDepth = 80

// RenderParameters configures a single render. Zero values inherit the
// engine's settings.
type RenderParameters struct {
	// LocalVariables are the caller's data, visible to the template as
	// top-level variables.
	LocalVariables map[string]any

	// Filters are objects whose exported methods are added as filters for
	// this render only.
	Filters []any

	// FilterFuncs are functions added as filters for this render only, keyed
	// by filter name.
	FilterFuncs map[string]any

	// Registers are passed to tags, e.g. "file_system" overrides the engine's
	// file system.
	Registers map[string]any

	ErrorsOutputMode ErrorsOutputMode
	Syntax           SyntaxCompatibility
	MaxIterations    int
	Timeout          time.Duration
	Locale           language.Tag
	StrictVariables  bool

	// Context is checked for cancellation at loop iterations and body entry.
	Context context.Context
}

// Context is the state of one render: scopes, environments, registers and
// collected errors. A Context must not be used by more than one goroutine at
// a time.
type Context struct {
	engine *Engine
	parent context.Context
	name   string

	// scopes holds the scope stack with the innermost scope last. scopes[0]
	// is the assignment scope written by assign and capture.
	scopes []map[string]any

	// environments[0] is the per-render document store (increment and
	// decrement counters), followed by the caller's variables.
	environments []map[string]any

	registers map[string]any
	errors    []error
	recorded  map[*Error]struct{}
	filters   map[string][]*filterFunc
	blocks    map[string]*blockStack

	mode     ErrorsOutputMode
	syntax   SyntaxCompatibility
	strict   bool
	budget   *iterationBudget
	timeout  time.Duration
	deadline time.Time
	loc      *locale.Locale
	naming   naming.Convention
	logger   *slog.Logger
}

func newContext(e *Engine, p RenderParameters) (*Context, error) {
	ctx := &Context{
		engine:    e,
		parent:    p.Context,
		scopes:    []map[string]any{{}},
		registers: make(map[string]any),
		blocks:    make(map[string]*blockStack),
		mode:      e.mode,
		syntax:    e.syntax,
		strict:    e.strict || p.StrictVariables,
		timeout:   e.timeout,
		loc:       e.locale,
		naming:    e.naming,
		logger:    e.logger,
	}
	if ctx.parent == nil {
		ctx.parent = context.Background()
	}
	locals := p.LocalVariables
	if locals == nil {
		locals = map[string]any{}
	}
	ctx.environments = []map[string]any{{}, locals}
	for k, v := range p.Registers {
		ctx.registers[k] = v
	}
	if p.ErrorsOutputMode != 0 {
		ctx.mode = p.ErrorsOutputMode
	}
	if p.Syntax != 0 {
		ctx.syntax = p.Syntax
	}
	if p.Timeout > 0 {
		ctx.timeout = p.Timeout
	}
	if p.Locale != language.Und {
		ctx.loc = locale.ForTag(p.Locale)
	}
	limit := e.maxIterations
	if p.MaxIterations > 0 {
		limit = p.MaxIterations
	}
	ctx.budget = newIterationBudget(limit)

	if len(p.Filters) > 0 || len(p.FilterFuncs) > 0 {
		ctx.filters = make(map[string][]*filterFunc)
		for _, obj := range p.Filters {
			fns, err := methodFilters(obj, e.naming)
			if err != nil {
				return nil, err
			}
			for _, f := range fns {
				ctx.filters[f.name] = addCandidate(ctx.filters[f.name], f)
			}
		}
		for name, fn := range p.FilterFuncs {
			f, err := newFilterFunc(name, fn, nil)
			if err != nil {
				return nil, err
			}
			ctx.filters[name] = addCandidate(ctx.filters[name], f)
		}
	}
	return ctx, nil
}

// Engine returns the engine the context was created by.
func (ctx *Context) Engine() *Engine { return ctx.engine }

// Context returns the Go context of the render.
func (ctx *Context) Context() context.Context { return ctx.parent }

// Logger returns the logger diagnostics are written to.
func (ctx *Context) Logger() *slog.Logger { return ctx.logger }

// Errors returns every error caught while rendering, including unresolved
// variables.
func (ctx *Context) Errors() []error { return ctx.errors }

// Err returns the caught errors combined into one, or nil.
func (ctx *Context) Err() error { return multierr.Combine(ctx.errors...) }

// Registers returns the register bag shared by all tags of the render.
func (ctx *Context) Registers() map[string]any { return ctx.registers }

// Syntax returns the syntax compatibility of the render.
func (ctx *Context) Syntax() SyntaxCompatibility { return ctx.syntax }

// Language returns the language tag numbers are formatted with.
func (ctx *Context) Language() language.Tag { return ctx.loc.Tag() }

// ErrorsOutputMode returns the mode errors are handled with.
func (ctx *Context) ErrorsOutputMode() ErrorsOutputMode { return ctx.mode }

// Iterations returns the number of loop iterations run so far.
func (ctx *Context) Iterations() int64 { return ctx.budget.consumed() }

// Push adds an innermost scope.
func (ctx *Context) Push(scope map[string]any) error {
	if len(ctx.scopes) >= maxScopeDepth {
		return NewError(ErrStackLevel, "Nesting too deep")
	}
	if scope == nil {
		scope = map[string]any{}
	}
	ctx.scopes = append(ctx.scopes, scope)
	return nil
}

// Pop removes the innermost scope. The assignment scope is never removed.
func (ctx *Context) Pop() {
	if len(ctx.scopes) > 1 {
		ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
	}
}

// Stack runs fn with scope pushed as the innermost scope.
func (ctx *Context) Stack(scope map[string]any, fn func() error) error {
	if err := ctx.Push(scope); err != nil {
		return err
	}
	defer ctx.Pop()
	return fn()
}

// Assign sets a variable in the assignment scope.
func (ctx *Context) Assign(name string, v any) {
	ctx.scopes[0][name] = v
}

// SetLocal sets a variable in the innermost scope.
func (ctx *Context) SetLocal(name string, v any) {
	ctx.scopes[len(ctx.scopes)-1][name] = v
}

// register returns the named register as a map, creating it on first use.
func (ctx *Context) register(name string) map[string]any {
	if m, ok := ctx.registers[name].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	ctx.registers[name] = m
	return m
}

// RenderAll renders nodes in order. Errors are handled per node according to
// the errors output mode; a break or continue stops the sequence and is
// returned to the caller.
func (ctx *Context) RenderAll(nodes []Node, out *strings.Builder) (Flow, error) {
	if err := ctx.checkDeadline(); err != nil {
		return FlowNext, err
	}
	for _, n := range nodes {
		flow, err := n.Render(ctx, out)
		if err != nil {
			if err := ctx.HandleError(err, out); err != nil {
				return FlowNext, err
			}
			continue
		}
		if flow != FlowNext {
			return flow, nil
		}
	}
	return FlowNext, nil
}

// RenderScoped renders nodes inside a fresh innermost scope.
func (ctx *Context) RenderScoped(nodes []Node, out *strings.Builder) (Flow, error) {
	if err := ctx.Push(nil); err != nil {
		return FlowNext, err
	}
	defer ctx.Pop()
	return ctx.RenderAll(nodes, out)
}

// HandleError records err and applies the errors output mode. It returns a
// non-nil error when rendering must stop: in Rethrow mode, and always for
// runtime limits and unsafe types.
func (ctx *Context) HandleError(err error, out *strings.Builder) error {
	le := asError(err)
	ctx.record(le)
	if isFatal(le) || ctx.mode == Rethrow {
		return le
	}
	ctx.logger.Warn("liquid render error", "template", ctx.name, "mode", ctx.mode.String(), "error", le)
	if ctx.mode == Suppress {
		return nil
	}
	if le.Kind == ErrSyntax {
		out.WriteString("Liquid syntax error: ")
	} else {
		out.WriteString("Liquid error: ")
	}
	out.WriteString(le.Message)
	return nil
}

// record adds le to the render's errors once. An error returned through
// several nested renders is recorded by the first.
func (ctx *Context) record(le *Error) {
	if _, ok := ctx.recorded[le]; ok {
		return
	}
	if ctx.recorded == nil {
		ctx.recorded = make(map[*Error]struct{})
	}
	ctx.recorded[le] = struct{}{}
	ctx.errors = append(ctx.errors, le)
}

func isFatal(err error) bool {
	return IsRuntimeLimit(err) || errors.Is(err, ErrUnsafeType)
}

// Tick consumes one loop iteration from the render's budget and checks the
// deadline. Loops call it before every iteration.
func (ctx *Context) Tick() error {
	if err := ctx.budget.consume(1); err != nil {
		return err
	}
	return ctx.checkDeadline()
}

func (ctx *Context) checkDeadline() error {
	if err := ctx.parent.Err(); err != nil {
		return &Error{Kind: ErrTimeout, Message: "Render cancelled: " + err.Error(), Err: err}
	}
	if !ctx.deadline.IsZero() && time.Now().After(ctx.deadline) {
		return Errorf(ErrTimeout, "Render timed out after %s", ctx.timeout)
	}
	return nil
}

func (ctx *Context) startClock() {
	if ctx.timeout > 0 && ctx.deadline.IsZero() {
		ctx.deadline = time.Now().Add(ctx.timeout)
	}
}
