package liquid

import (
	"fmt"
	"strings"

	"github.com/fluidity/liquid/lexer"
	"github.com/fluidity/liquid/naming"
)

// Builder turns a token stream into a node tree. Tags receive the Builder in
// Initialize so that they can parse markup with the engine's settings and
// inspect the block they are being added to.
type Builder struct {
	engine     *Engine
	name       string
	tokens     []lexer.Token
	pos        int
	line       int
	open       []Block
	singletons map[string]bool
}

func newBuilder(e *Engine, name string, tokens []lexer.Token) *Builder {
	return &Builder{
		engine:     e,
		name:       name,
		tokens:     tokens,
		line:       1,
		singletons: make(map[string]bool),
	}
}

func (b *Builder) parseDocument() (*Document, error) {
	doc := &Document{}
	if err := b.ParseBody(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Engine returns the engine the template is compiled for.
func (b *Builder) Engine() *Engine { return b.engine }

// Convention returns the engine's naming convention.
func (b *Builder) Convention() naming.Convention { return b.engine.naming }

// Line returns the source line of the token being processed.
func (b *Builder) Line() int { return b.line }

// Current returns the innermost open block, which is the block a tag being
// initialized will be appended to.
func (b *Builder) Current() Block {
	if len(b.open) == 0 {
		return nil
	}
	return b.open[len(b.open)-1]
}

// AtTopLevel reports whether the current block is the document root.
func (b *Builder) AtTopLevel() bool {
	_, ok := b.Current().(*Document)
	return ok
}

// ParseBody consumes tokens into blk until blk's end tag. Only the document
// root may be terminated by the end of input.
func (b *Builder) ParseBody(blk Block) error {
	b.open = append(b.open, blk)
	defer func() { b.open = b.open[:len(b.open)-1] }()

	for b.pos < len(b.tokens) {
		tok := b.tokens[b.pos]
		b.pos++
		b.line = tok.Line

		switch tok.Type {
		case lexer.TokenLiteral:
			blk.Append(&Literal{Text: tok.Value})

		case lexer.TokenVariable:
			m := variableRe.FindStringSubmatch(tok.Value)
			if m == nil {
				return b.SyntaxError("Variable '%s' was not properly terminated with '}}'", tok.Value)
			}
			v, err := b.ParseVariable(m[1])
			if err != nil {
				return b.wrap(err)
			}
			blk.Append(&VariableNode{Variable: v, Line: tok.Line})

		case lexer.TokenTag:
			m := tagRe.FindStringSubmatch(tok.Value)
			if m == nil {
				return b.SyntaxError("Tag '%s' is not a valid tag", tok.Value)
			}
			name, markup := m[1], m[2]
			if name == blk.EndTag() {
				return nil
			}
			if err := b.createTag(blk, name, markup); err != nil {
				return err
			}
		}
	}

	if _, ok := blk.(*Document); !ok {
		return b.SyntaxError("%s tag was never closed", blk.BlockName())
	}
	return nil
}

func (b *Builder) createTag(parent Block, name, markup string) error {
	factory, ok := b.engine.tag(name)
	if !ok {
		return b.wrap(parent.UnknownTag(b, name, markup))
	}
	tag := factory()
	if err := tag.Initialize(b, name, markup); err != nil {
		return b.wrap(err)
	}
	if s, ok := tag.(Singleton); ok {
		key := name + "\x00" + s.Identity()
		if b.singletons[key] {
			return b.SyntaxError("%s '%s' is already defined", name, s.Identity())
		}
		b.singletons[key] = true
	}
	if blk, ok := tag.(Block); ok {
		if err := b.ParseBody(blk); err != nil {
			return err
		}
	}
	parent.Append(tag)
	return nil
}

// UnknownTag reports a tag that the block named blockName cannot handle.
// It distinguishes branch tags the block does not support, end tags that
// belong to an outer block, end tags that close nothing and unregistered
// names. blockName is empty for the document root.
func (b *Builder) UnknownTag(blockName, name string) error {
	switch name {
	case "else", "elsif", "when":
		if blockName == "" {
			return b.SyntaxError("Unknown tag '%s'", name)
		}
		return b.SyntaxError("%s tag does not expect '%s' tag", blockName, name)
	}
	if strings.HasPrefix(name, "end") {
		for i := len(b.open) - 1; i >= 0; i-- {
			if b.open[i].EndTag() == name {
				return b.SyntaxError("%s tag was never closed", b.Current().BlockName())
			}
		}
		if blockName == "" {
			return b.SyntaxError("'%s' does not match any open block", name)
		}
		return b.SyntaxError("'%s' is not a valid delimiter for %s tags. use end%s", name, blockName, blockName)
	}
	return b.SyntaxError("Unknown tag '%s'", name)
}

// SyntaxError creates a syntax error at the current line.
func (b *Builder) SyntaxError(format string, args ...any) *Error {
	return &Error{Kind: ErrSyntax, Message: fmt.Sprintf(format, args...), Line: b.line, Name: b.name}
}

func (b *Builder) wrap(err error) error {
	if err == nil {
		return nil
	}
	le, ok := err.(*Error)
	if !ok {
		le = &Error{Kind: ErrSyntax, Message: err.Error(), Err: err}
	}
	return le.WithLine(b.line).WithName(b.name)
}
