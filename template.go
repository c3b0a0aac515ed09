package liquid

import (
	"io"
	"strings"
)

// Template is a compiled template. It is immutable and may be rendered by
// many goroutines at once.
type Template struct {
	engine *Engine
	name   string
	source string
	root   *Document
}

// Name returns the name the template was compiled under, if any.
func (t *Template) Name() string { return t.name }

// Source returns the template source.
func (t *Template) Source() string { return t.source }

// Engine returns the engine the template was compiled by.
func (t *Template) Engine() *Engine { return t.engine }

// Root returns the document node of the template.
func (t *Template) Root() *Document { return t.root }

// Render renders the template with vars as its top-level variables and the
// engine's default settings.
func (t *Template) Render(vars map[string]any) (string, error) {
	return t.RenderWith(RenderParameters{LocalVariables: vars})
}

// RenderWith renders the template with the given parameters. An error is
// returned in Rethrow mode, and in every mode when a runtime limit is hit or
// an unsafe type is accessed. Other errors are handled by the errors output
// mode; use a Context from Engine.NewContext with RenderTo to inspect them.
func (t *Template) RenderWith(p RenderParameters) (string, error) {
	ctx, err := t.engine.NewContext(p)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.RenderTo(&b, ctx); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTo renders the template into w using ctx. Nothing is written when
// rendering fails. A break or continue outside of a loop ends rendering of
// its enclosing body and is otherwise ignored.
func (t *Template) RenderTo(w io.Writer, ctx *Context) error {
	ctx.startClock()
	savedName := ctx.name
	ctx.name = t.name
	ctx.blocks = make(map[string]*blockStack)
	defer func() { ctx.name = savedName }()

	var out strings.Builder
	if _, err := t.root.Render(ctx, &out); err != nil {
		if err := ctx.HandleError(err, &out); err != nil {
			return asError(err).WithName(t.name)
		}
	}
	_, err := io.WriteString(w, out.String())
	return err
}
