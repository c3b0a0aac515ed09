package liquid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fluidity/liquid/value"
)

var (
	forRe       = regexp.MustCompile(`^\s*([\w-]+)\s+in\s+(` + quotedFragment + `)\s*(reversed)?`)
	cycleNameRe = regexp.MustCompile(`^\s*(` + quotedFragment + `)\s*:\s*(.*)$`)
)

// loopWindow holds the attributes shared by for and tablerow.
type loopWindow struct {
	Variable   string
	Collection string
	Name       string
	Reversed   bool
	Limit      string
	Offset     string
	Cols       string
}

func (w *loopWindow) parse(b *Builder, tag, markup string) error {
	m := forRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in '%s' - Valid syntax: %s [item] in [collection]", tag, tag)
	}
	w.Variable, w.Collection, w.Reversed = m[1], m[2], m[3] != ""
	w.Name = w.Variable + "-" + w.Collection
	conv := b.Convention()
	for _, kv := range attributes(markup[len(m[0]):]) {
		switch {
		case conv.Equal(kv[0], "limit"):
			w.Limit = kv[1]
		case conv.Equal(kv[0], "offset"):
			w.Offset = kv[1]
		case conv.Equal(kv[0], "cols"):
			w.Cols = kv[1]
		}
	}
	return nil
}

func (ctx *Context) resolveInt(expr string) (int, error) {
	v, err := ctx.Resolve(expr)
	if err != nil {
		return 0, err
	}
	if i, ok := value.ToInt64(v); ok {
		return int(i), nil
	}
	if s, ok := v.(string); ok {
		if n, ok := ctx.number(s).(int32); ok {
			return int(n), nil
		}
	}
	if v == nil {
		return 0, nil
	}
	return 0, Errorf(ErrArgument, "'%s' is not an integer", expr)
}

// items resolves the collection and applies offset, limit and reversed. The
// end of the window is stored so that offset: continue resumes from it.
func (w *loopWindow) items(ctx *Context) ([]any, error) {
	coll, err := ctx.Resolve(w.Collection)
	if err != nil {
		return nil, err
	}
	reg := ctx.register("for")
	offset := 0
	if w.Offset == "continue" {
		offset, _ = reg[w.Name].(int)
	} else if w.Offset != "" {
		if offset, err = ctx.resolveInt(w.Offset); err != nil {
			return nil, err
		}
	}
	limit := -1
	if w.Limit != "" {
		if limit, err = ctx.resolveInt(w.Limit); err != nil {
			return nil, err
		}
		if limit < 0 {
			limit = 0
		}
	}

	var items []any
	if s, ok := coll.(string); ok {
		if s != "" {
			items, _ = value.Window([]any{s}, offset, limit)
		}
	} else {
		items, _ = value.Window(coll, offset, limit)
	}
	if offset < 0 {
		offset = 0
	}
	reg[w.Name] = offset + len(items)

	if w.Reversed {
		rev := make([]any, len(items))
		for i, it := range items {
			rev[len(items)-1-i] = it
		}
		items = rev
	}
	return items, nil
}

// ForTag iterates over a collection. The loop variable and forloop are set
// in a scope of their own.
type ForTag struct {
	BlockBase
	loopWindow
	Else   []Node
	inElse bool
}

func (t *ForTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	return t.parse(b, name, markup)
}

func (t *ForTag) Append(n Node) {
	if t.inElse {
		t.Else = append(t.Else, n)
		return
	}
	t.Body = append(t.Body, n)
}

func (t *ForTag) UnknownTag(b *Builder, name, markup string) error {
	if name == "else" && !t.inElse {
		t.inElse = true
		return nil
	}
	return t.BlockBase.UnknownTag(b, name, markup)
}

func (t *ForTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	items, err := t.items(ctx)
	if err != nil {
		return FlowNext, err
	}
	if len(items) == 0 {
		return ctx.RenderScoped(t.Else, out)
	}

	if err := ctx.Push(nil); err != nil {
		return FlowNext, err
	}
	defer ctx.Pop()

	n := len(items)
	for i, item := range items {
		if err := ctx.Tick(); err != nil {
			return FlowNext, err
		}
		ctx.SetLocal(t.Variable, item)
		ctx.SetLocal("forloop", map[string]any{
			"name":    t.Name,
			"length":  n,
			"index":   i + 1,
			"index0":  i,
			"rindex":  n - i,
			"rindex0": n - i - 1,
			"first":   i == 0,
			"last":    i == n-1,
		})
		flow, err := ctx.RenderAll(t.Body, out)
		if err != nil {
			return FlowNext, err
		}
		if flow == FlowBreak {
			break
		}
	}
	return FlowNext, nil
}

// TableRowTag renders a collection as HTML table rows of cols cells.
type TableRowTag struct {
	BlockBase
	loopWindow
}

func (t *TableRowTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	return t.parse(b, name, markup)
}

func (t *TableRowTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	items, err := t.items(ctx)
	if err != nil {
		return FlowNext, err
	}
	n := len(items)
	cols := n
	if t.Cols != "" {
		if cols, err = ctx.resolveInt(t.Cols); err != nil {
			return FlowNext, err
		}
	}
	if cols <= 0 {
		cols = max(n, 1)
	}

	if err := ctx.Push(nil); err != nil {
		return FlowNext, err
	}
	defer ctx.Pop()

	out.WriteString("<tr class=\"row1\">\n")
	for i, item := range items {
		if err := ctx.Tick(); err != nil {
			return FlowNext, err
		}
		col, row := i%cols, i/cols
		if col == 0 && i > 0 {
			fmt.Fprintf(out, "</tr>\n<tr class=\"row%d\">", row+1)
		}
		ctx.SetLocal(t.Variable, item)
		ctx.SetLocal("tablerowloop", map[string]any{
			"length":    n,
			"index":     i + 1,
			"index0":    i,
			"rindex":    n - i,
			"rindex0":   n - i - 1,
			"first":     i == 0,
			"last":      i == n-1,
			"col":       col + 1,
			"col0":      col,
			"row":       row + 1,
			"col_first": col == 0,
			"col_last":  col == cols-1 || i == n-1,
		})
		fmt.Fprintf(out, "<td class=\"col%d\">", col+1)
		flow, err := ctx.RenderAll(t.Body, out)
		out.WriteString("</td>")
		if err != nil {
			return FlowNext, err
		}
		if flow == FlowBreak {
			break
		}
	}
	out.WriteString("</tr>\n")
	return FlowNext, nil
}

// BreakTag stops the innermost loop.
type BreakTag struct{}

func (*BreakTag) Initialize(*Builder, string, string) error { return nil }

func (*BreakTag) Render(*Context, *strings.Builder) (Flow, error) { return FlowBreak, nil }

// ContinueTag skips to the next iteration of the innermost loop.
type ContinueTag struct{}

func (*ContinueTag) Initialize(*Builder, string, string) error { return nil }

func (*ContinueTag) Render(*Context, *strings.Builder) (Flow, error) { return FlowContinue, nil }

// CycleTag outputs its values in turn. Cycles with the same values, or the
// same group name, share their position.
type CycleTag struct {
	Group  string
	Values []string
	key    string
}

func (t *CycleTag) Initialize(b *Builder, _, markup string) error {
	rest := markup
	if m := cycleNameRe.FindStringSubmatch(markup); m != nil {
		t.Group, rest = m[1], m[2]
	}
	for _, v := range splitOutsideQuotes(rest, ',') {
		if v = strings.TrimSpace(v); v != "" {
			t.Values = append(t.Values, v)
		}
	}
	if len(t.Values) == 0 {
		return b.SyntaxError("Syntax Error in 'cycle' - Valid syntax: cycle [name :] var [, var2, var3 ...]")
	}
	t.key = strings.Join(t.Values, ",")
	return nil
}

func (t *CycleTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	key := t.key
	if t.Group != "" {
		g, err := ctx.Resolve(t.Group)
		if err != nil {
			return FlowNext, err
		}
		key = ctx.Stringify(g)
	}
	reg := ctx.register("cycle")
	i, _ := reg[key].(int)
	v, err := ctx.Resolve(t.Values[i%len(t.Values)])
	if err != nil {
		return FlowNext, err
	}
	reg[key] = (i + 1) % len(t.Values)
	s, err := ctx.display(v, 0)
	if err != nil {
		return FlowNext, err
	}
	out.WriteString(s)
	return FlowNext, nil
}
