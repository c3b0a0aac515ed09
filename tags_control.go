package liquid

import (
	"regexp"
	"strings"
)

func registerDefaultTags(e *Engine) {
	AddTagType[IfTag](e, "if")
	AddTagType[IfTag](e, "unless")
	AddTagType[CaseTag](e, "case")
	AddTagType[IfChangedTag](e, "ifchanged")
	AddTagType[ForTag](e, "for")
	AddTagType[TableRowTag](e, "tablerow")
	AddTagType[BreakTag](e, "break")
	AddTagType[ContinueTag](e, "continue")
	AddTagType[CycleTag](e, "cycle")
	AddTagType[AssignTag](e, "assign")
	AddTagType[CaptureTag](e, "capture")
	AddTagType[IncrementTag](e, "increment")
	AddTagType[IncrementTag](e, "decrement")
	AddTagType[RawTag](e, "raw")
	AddTagType[RawTag](e, "literal")
	AddTagType[CommentTag](e, "comment")
	AddTagType[IncludeTag](e, "include")
	AddTagType[Extends](e, "extends")
	AddTagType[BlockTag](e, "block")
}

// IfTag implements if and unless. Each branch is a condition with its own
// body; unless negates the first condition only.
type IfTag struct {
	BlockBase
	Branches []*Condition
	invert   bool
	hasElse  bool
}

func (t *IfTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	t.invert = name == "unless"
	c, err := b.ParseCondition(markup)
	if err != nil {
		return err
	}
	t.Branches = append(t.Branches, c)
	return nil
}

func (t *IfTag) Append(n Node) {
	c := t.Branches[len(t.Branches)-1]
	c.Body = append(c.Body, n)
}

func (t *IfTag) Nodes() []Node { return t.Branches[len(t.Branches)-1].Body }

func (t *IfTag) UnknownTag(b *Builder, name, markup string) error {
	switch name {
	case "elsif":
		if t.hasElse {
			return b.SyntaxError("%s tag does not expect 'elsif' after 'else'", t.TagName)
		}
		c, err := b.ParseCondition(markup)
		if err != nil {
			return err
		}
		t.Branches = append(t.Branches, c)
		return nil
	case "else":
		if t.hasElse {
			return b.SyntaxError("%s tag does not expect a second 'else'", t.TagName)
		}
		t.hasElse = true
		t.Branches = append(t.Branches, ElseCondition())
		return nil
	}
	return t.BlockBase.UnknownTag(b, name, markup)
}

func (t *IfTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	for i, c := range t.Branches {
		ok, err := c.Evaluate(ctx)
		if err != nil {
			return FlowNext, err
		}
		if i == 0 && t.invert {
			ok = !ok
		}
		if ok {
			return ctx.RenderScoped(c.Body, out)
		}
	}
	return FlowNext, nil
}

var caseRe = regexp.MustCompile(`^\s*(` + quotedFragment + `)\s*$`)

// CaseTag renders every when clause whose value equals the case expression,
// or the else clause when none matched.
type CaseTag struct {
	BlockBase
	Left  string
	Whens []*Condition
}

func (t *CaseTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	m := caseRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'case' - Valid syntax: case [condition]")
	}
	t.Left = m[1]
	return nil
}

// Append drops nodes before the first when, as they can never render.
func (t *CaseTag) Append(n Node) {
	if len(t.Whens) == 0 {
		return
	}
	c := t.Whens[len(t.Whens)-1]
	c.Body = append(c.Body, n)
}

func (t *CaseTag) Nodes() []Node {
	if len(t.Whens) == 0 {
		return nil
	}
	return t.Whens[len(t.Whens)-1].Body
}

func (t *CaseTag) UnknownTag(b *Builder, name, markup string) error {
	switch name {
	case "when":
		values := whenValues(markup, b)
		if len(values) == 0 {
			return b.SyntaxError("Syntax Error in 'case' - Valid when condition: when [condition] ")
		}
		op, _ := lookupOperator("==", b.Convention())
		var head *Condition
		for i := len(values) - 1; i >= 0; i-- {
			head = &Condition{Left: t.Left, Operator: "==", Right: values[i], op: op, next: head}
		}
		t.Whens = append(t.Whens, head)
		return nil
	case "else":
		t.Whens = append(t.Whens, ElseCondition())
		return nil
	}
	return t.BlockBase.UnknownTag(b, name, markup)
}

// whenValues splits "a, b or c" into its values.
func whenValues(markup string, b *Builder) []string {
	var out []string
	for _, w := range words(markup) {
		if b.Convention().Equal(w, "or") {
			continue
		}
		for _, part := range splitOutsideQuotes(w, ',') {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (t *CaseTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	matched := false
	for _, c := range t.Whens {
		if c.IsElse() {
			if !matched {
				return ctx.RenderScoped(c.Body, out)
			}
			continue
		}
		ok, err := c.Evaluate(ctx)
		if err != nil {
			return FlowNext, err
		}
		if !ok {
			continue
		}
		matched = true
		if flow, err := ctx.RenderScoped(c.Body, out); err != nil || flow != FlowNext {
			return flow, err
		}
	}
	return FlowNext, nil
}

// IfChangedTag renders its body only when the output differs from the
// previous render of any ifchanged tag.
type IfChangedTag struct {
	BlockBase
}

func (t *IfChangedTag) Initialize(_ *Builder, name, _ string) error {
	t.TagName = name
	return nil
}

func (t *IfChangedTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	var buf strings.Builder
	flow, err := ctx.RenderScoped(t.Body, &buf)
	if err != nil {
		return flow, err
	}
	if s := buf.String(); ctx.registers["ifchanged"] != s {
		ctx.registers["ifchanged"] = s
		out.WriteString(s)
	}
	return flow, nil
}
