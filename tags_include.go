package liquid

import (
	"path"
	"regexp"
	"strings"

	"github.com/fluidity/liquid/value"
)

var (
	includeRe = regexp.MustCompile(`^\s*(` + quotedFragment + `)(?:\s+(with|for)\s+(` + quotedFragment + `))?`)
	extendsRe = regexp.MustCompile(`^\s*(` + quotedFragment + `)\s*$`)
	blockRe   = regexp.MustCompile(`^\s*([\w-]+)\s*$`)
)

// IncludeTag renders another template in the current context. The included
// template sees the caller's variables plus its own variable, named after
// the last path segment of the template name.
type IncludeTag struct {
	Template   string
	Mode       string
	Source     string
	Attributes [][2]string
}

func (t *IncludeTag) Initialize(b *Builder, _, markup string) error {
	m := includeRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'include' - Valid syntax: include '[template]' (with|for) [object|collection]")
	}
	t.Template, t.Mode, t.Source = m[1], m[2], m[3]
	t.Attributes = attributes(markup[len(m[0]):])
	return nil
}

func (t *IncludeTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	nv, err := ctx.Resolve(t.Template)
	if err != nil {
		return FlowNext, err
	}
	name := ctx.Stringify(nv)
	tmpl, err := ctx.loadTemplate(name)
	if err != nil {
		return FlowNext, err
	}

	scope := map[string]any{}
	for _, kv := range t.Attributes {
		v, err := ctx.Resolve(kv[1])
		if err != nil {
			return FlowNext, err
		}
		scope[kv[0]] = v
	}
	varName := path.Base(name)

	var src any
	hasSrc := false
	if t.Source != "" {
		if src, err = ctx.Resolve(t.Source); err != nil {
			return FlowNext, err
		}
		hasSrc = true
	} else if v, ok := ctx.findVariable(varName); ok {
		src, hasSrc = v, true
	}

	if err := ctx.Push(scope); err != nil {
		return FlowNext, err
	}
	defer ctx.Pop()

	savedBlocks, savedName := ctx.blocks, ctx.name
	ctx.blocks, ctx.name = map[string]*blockStack{}, name
	defer func() { ctx.blocks, ctx.name = savedBlocks, savedName }()

	if items, ok := value.Iterate(src); ok && t.Mode == "for" {
		for _, item := range items {
			if err := ctx.Tick(); err != nil {
				return FlowNext, err
			}
			scope[varName] = item
			if _, err := tmpl.root.Render(ctx, out); err != nil {
				return FlowNext, err
			}
		}
		return FlowNext, nil
	}
	if hasSrc {
		scope[varName] = src
	}
	_, err = tmpl.root.Render(ctx, out)
	return FlowNext, err
}

// loadTemplate finds a template through the file_system register, the
// engine's stored templates and the engine's file system, in that order.
func (ctx *Context) loadTemplate(name string) (*Template, error) {
	if fs, ok := ctx.registers["file_system"].(FileSystem); ok {
		return loadTemplate(ctx.parent, ctx.engine, fs, name)
	}
	return ctx.engine.GetTemplate(ctx.parent, name)
}

// Extends makes the document a child of another template: only the child's
// blocks are rendered, in place of the parent's blocks of the same name.
type Extends struct {
	Parent string
}

func (t *Extends) Initialize(b *Builder, _, markup string) error {
	if !b.AtTopLevel() {
		return b.SyntaxError("Syntax Error in 'extends' - 'extends' must be the first tag in a template")
	}
	for _, n := range b.Current().Nodes() {
		if l, ok := n.(*Literal); !ok || !l.isBlank() {
			return b.SyntaxError("Syntax Error in 'extends' - 'extends' must be the first tag in a template")
		}
	}
	m := extendsRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'extends' - Valid syntax: extends '[template]'")
	}
	t.Parent = m[1]
	return nil
}

// Render outputs nothing; Document renders extending templates through
// renderInherited.
func (t *Extends) Render(*Context, *strings.Builder) (Flow, error) { return FlowNext, nil }

// renderInherited registers the blocks of doc behind those of any child
// already registered and renders the parent. The block chains live in the
// Context, so the parsed templates are never modified.
func (t *Extends) renderInherited(ctx *Context, out *strings.Builder, doc *Document) error {
	ctx.registerBlocks(doc.Body)
	pv, err := ctx.Resolve(t.Parent)
	if err != nil {
		return err
	}
	parent, err := ctx.loadTemplate(ctx.Stringify(pv))
	if err != nil {
		return err
	}
	if err := ctx.Push(nil); err != nil {
		return err
	}
	defer ctx.Pop()
	_, err = parent.root.Render(ctx, out)
	return err
}

type blockStack struct {
	layers [][]Node // child first
}

func (ctx *Context) registerBlocks(nodes []Node) {
	for _, n := range nodes {
		b, ok := n.(*BlockTag)
		if !ok {
			continue
		}
		if bs, ok := ctx.blocks[b.Name]; ok {
			bs.layers = append(bs.layers, b.Body)
		} else {
			ctx.blocks[b.Name] = &blockStack{layers: [][]Node{b.Body}}
		}
		ctx.registerBlocks(b.Body)
	}
}

// BlockTag is a named, overridable section of a template.
type BlockTag struct {
	BlockBase
	Name string
}

func (t *BlockTag) Initialize(b *Builder, name, markup string) error {
	t.TagName = name
	m := blockRe.FindStringSubmatch(markup)
	if m == nil {
		return b.SyntaxError("Syntax Error in 'block' - Valid syntax: block [name]")
	}
	t.Name = m[1]
	return nil
}

// Identity makes block names unique within a document.
func (t *BlockTag) Identity() string { return t.Name }

func (t *BlockTag) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	bs, ok := ctx.blocks[t.Name]
	if !ok {
		bs = &blockStack{layers: [][]Node{t.Body}}
	}
	return bs.render(ctx, out, 0)
}

func (bs *blockStack) render(ctx *Context, out *strings.Builder, layer int) (Flow, error) {
	scope := map[string]any{"block": &blockDrop{ctx: ctx, stack: bs, layer: layer}}
	if err := ctx.Push(scope); err != nil {
		return FlowNext, err
	}
	defer ctx.Pop()
	return ctx.RenderAll(bs.layers[layer], out)
}

// blockDrop is the block variable inside a block; block.super renders the
// overridden parent block.
type blockDrop struct {
	ctx   *Context
	stack *blockStack
	layer int
}

func (d *blockDrop) ContainsKey(key string) bool {
	return key == "super" && d.layer+1 < len(d.stack.layers)
}

func (d *blockDrop) Get(key string) any {
	v, _, _ := d.lookup(key)
	return v
}

// lookup renders the parent block. Errors the parent could not handle in
// place, such as exhausted limits or Rethrow mode failures, are returned to
// the enclosing render.
func (d *blockDrop) lookup(key string) (any, bool, error) {
	if !d.ContainsKey(key) {
		return nil, false, nil
	}
	var buf strings.Builder
	if _, err := d.stack.render(d.ctx, &buf, d.layer+1); err != nil {
		return nil, true, err
	}
	return buf.String(), true, nil
}
