package liquid

import (
	"strings"
	"unicode"
)

// Flow tells the enclosing block how to continue after a node rendered.
type Flow int

const (
	// FlowNext continues with the next sibling.
	FlowNext Flow = iota

	// FlowBreak stops the innermost loop.
	FlowBreak

	// FlowContinue skips to the next iteration of the innermost loop.
	FlowContinue
)

// Node is an element of a parsed template. Nodes are shared between
// concurrent renders and must keep all per-render state in the Context.
type Node interface {
	Render(ctx *Context, out *strings.Builder) (Flow, error)
}

// Tag is a node created from a {% name markup %} construct.
type Tag interface {
	Node

	// Initialize parses the tag's markup. It is called once, at parse time.
	Initialize(b *Builder, name, markup string) error
}

// Block is a tag that owns the nodes up to its end tag.
type Block interface {
	Tag

	// BlockName is the name the block was opened with.
	BlockName() string

	// EndTag is the tag name that closes the block, usually "end" + name.
	EndTag() string

	// Append adds a child node to the block's current body.
	Append(n Node)

	// Nodes returns the children added so far.
	Nodes() []Node

	// UnknownTag is called for tags in the body that are not registered,
	// such as else or elsif. Blocks without branches delegate to
	// Builder.UnknownTag.
	UnknownTag(b *Builder, name, markup string) error
}

// RawBlock is a block whose body is never tokenized. The body arrives as a
// single literal node.
type RawBlock interface {
	Block
	RawBody()
}

// Singleton is implemented by tags that may appear at most once per
// identity within a document, like named blocks.
type Singleton interface {
	Identity() string
}

// BlockBase implements the bookkeeping part of Block. Embed it and
// implement Render and Initialize.
type BlockBase struct {
	TagName string
	Body    []Node
}

func (b *BlockBase) BlockName() string { return b.TagName }
func (b *BlockBase) EndTag() string    { return "end" + b.TagName }
func (b *BlockBase) Append(n Node)     { b.Body = append(b.Body, n) }
func (b *BlockBase) Nodes() []Node     { return b.Body }

func (b *BlockBase) UnknownTag(bd *Builder, name, markup string) error {
	return bd.UnknownTag(b.TagName, name)
}

// Literal is a run of template text.
type Literal struct {
	Text string
}

func (l *Literal) Render(_ *Context, out *strings.Builder) (Flow, error) {
	out.WriteString(l.Text)
	return FlowNext, nil
}

func (l *Literal) isBlank() bool {
	return strings.TrimFunc(l.Text, unicode.IsSpace) == ""
}

// Document is the root block of a template. It has no end tag and is
// terminated by the end of input.
type Document struct {
	BlockBase
}

func (d *Document) Initialize(*Builder, string, string) error { return nil }
func (d *Document) EndTag() string                          { return "" }

func (d *Document) UnknownTag(b *Builder, name, _ string) error {
	return b.UnknownTag("", name)
}

// Render renders the document. A document that extends another one only
// contributes its blocks. The root of an inheritance chain adds its blocks
// as the last layer, which block.super of its children renders.
func (d *Document) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	if ext := d.extends(); ext != nil {
		return FlowNext, ext.renderInherited(ctx, out, d)
	}
	if len(ctx.blocks) > 0 {
		ctx.registerBlocks(d.Body)
	}
	return ctx.RenderAll(d.Body, out)
}

func (d *Document) extends() *Extends {
	for _, n := range d.Body {
		if l, ok := n.(*Literal); ok && l.isBlank() {
			continue
		}
		ext, _ := n.(*Extends)
		return ext
	}
	return nil
}
