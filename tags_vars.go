package liquid

import (
	"math"
	"regexp"
	"strings"

	"github.com/fluidity/liquid/value"
)

var (
	assignRe  = regexp.MustCompile(`(?s)^\s*([\w\-\.\[\]]+)\s*=\s*(.*?)\s*$`)
	captureRe = regexp.MustCompile(`^\s*(` + quotedFragment + `)\s*$`)
)

// AssignTag stores the value of a filtered expression in the assignment
// scope.
type AssignTag struct {
	To   string
	From *Variable
}

func (t *AssignTag) Initialize(b *Builder, _, markup string) error {
	m := assignRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'assign' - Valid syntax: assign [var] = [source]")
	}
	v, err := b.ParseVariable(m[2])
	if err != nil {
		return err
	}
	t.To, t.From = m[1], v
	return nil
}

func (t *AssignTag) Render(ctx *Context, _ *strings.Builder) (Flow, error) {
	v, err := t.From.Evaluate(ctx)
	if err != nil {
		return FlowNext, err
	}
	ctx.Assign(t.To, v)
	return FlowNext, nil
}

// CaptureTag renders its body and assigns the output to a variable instead
// of emitting it.
type CaptureTag struct {
	BlockBase
	To string
}

func (t *CaptureTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	m := captureRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'capture' - Valid syntax: capture [var]")
	}
	t.To = unquote(m[1])
	return nil
}

func (t *CaptureTag) Render(ctx *Context, _ *strings.Builder) (Flow, error) {
	var buf strings.Builder
	flow, err := ctx.RenderAll(t.Body, &buf)
	if err != nil {
		return flow, err
	}
	ctx.Assign(t.To, buf.String())
	return flow, nil
}

// IncrementTag implements increment and decrement. Counters live in the
// document store, apart from assigned variables, and start at 0. increment
// outputs the value before the change, decrement the value after it.
type IncrementTag struct {
	Variable  string
	decrement bool
}

func (t *IncrementTag) Initialize(b *Builder, name, markup string) error {
	f := fragments(markup)
	if len(f) == 0 {
		return b.SyntaxError("Syntax Error in '%s' - Valid syntax: %s [var]", name, name)
	}
	t.Variable = f[0]
	t.decrement = name == "decrement"
	return nil
}

func (t *IncrementTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	store := ctx.environments[0]
	cur, ok := store[t.Variable]
	if !ok {
		cur = int32(0)
	}
	if t.decrement {
		cur = step(cur, -1)
		store[t.Variable] = cur
		out.WriteString(ctx.Stringify(cur))
		return FlowNext, nil
	}
	out.WriteString(ctx.Stringify(cur))
	store[t.Variable] = step(cur, 1)
	return FlowNext, nil
}

// step adds delta to a counter held as int32, moving to int64 when the
// result no longer fits.
func step(cur any, delta int64) any {
	switch n := cur.(type) {
	case int32:
		r := int64(n) + delta
		if r >= math.MinInt32 && r <= math.MaxInt32 {
			return int32(r)
		}
		return r
	case int64:
		return n + delta
	}
	i, _ := value.ToInt64(cur)
	return i + delta
}

// RawTag outputs its body without interpreting it. It implements raw and
// literal.
type RawTag struct {
	BlockBase
}

func (t *RawTag) Initialize(_ *Builder, name, _ string) error {
	t.TagName = name
	return nil
}

func (*RawTag) RawBody() {}

func (t *RawTag) Render(_ *Context, out *strings.Builder) (Flow, error) {
	for _, n := range t.Body {
		if l, ok := n.(*Literal); ok {
			out.WriteString(l.Text)
		}
	}
	return FlowNext, nil
}

// CommentTag discards its body.
type CommentTag struct {
	BlockBase
}

func (t *CommentTag) Initialize(_ *Builder, name, _ string) error {
	t.TagName = name
	return nil
}

func (*CommentTag) RawBody() {}

func (*CommentTag) Render(*Context, *strings.Builder) (Flow, error) { return FlowNext, nil }
