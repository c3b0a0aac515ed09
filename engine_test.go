package liquid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/fluidity/liquid/filesystem"
	"github.com/fluidity/liquid/naming"
)

func render(t *testing.T, e *Engine, source string, vars map[string]any) string {
	t.Helper()
	tmpl, err := e.Parse(source)
	require.NoError(t, err)
	out, err := tmpl.Render(vars)
	require.NoError(t, err)
	return out
}

func TestBasicRender(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, "Hello World!", render(t, e, "Hello {{ name }}!", map[string]any{"name": "World"}))
	assert.Equal(t, "hello 42 3.14 true", render(t, e, "{{ str }} {{ num }} {{ float }} {{ bool }}", map[string]any{
		"str":   "hello",
		"num":   42,
		"float": 3.14,
		"bool":  true,
	}))
}

func TestNestedAccess(t *testing.T) {
	e := NewEngine()
	vars := map[string]any{
		"shop": map[string]any{
			"products": []map[string]any{{"title": "shoe"}, {"title": "hat"}},
		},
		"key": "title",
	}
	assert.Equal(t, "shoe hat hat", render(t, e, "{{ shop.products[0].title }} {{ shop.products.last.title }} {{ shop.products[1][key] }}", vars))
}

func TestLazyValues(t *testing.T) {
	e := NewEngine()
	calls := 0
	vars := map[string]any{
		"lazy": func() any { calls++; return "computed" },
		"ctx":  func(ctx *Context) any { return ctx.Syntax().String() },
	}
	assert.Equal(t, "computed modern", render(t, e, "{{ lazy }} {{ ctx }}", vars))
	assert.Equal(t, 1, calls)
}

func TestAnonymousStructs(t *testing.T) {
	e := NewEngine()
	v := struct {
		Title string
		Price int
	}{"shoe", 10}
	assert.Equal(t, "shoe 10", render(t, e, "{{ p.title }} {{ p.Price }}", map[string]any{"p": v}))
}

type product struct {
	Title string
	price int
}

func (p product) Price() int       { return p.price }
func (p *product) Discounted() int { return p.price / 2 }
func (p product) Secret() string   { return "hidden" }

func TestUnsafeTypeIsAnError(t *testing.T) {
	e := NewEngine(WithErrorsOutputMode(Suppress))
	tmpl, err := e.Parse("a{{ p.title }}b")
	require.NoError(t, err)
	_, err = tmpl.Render(map[string]any{"p": product{Title: "shoe"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeType))
	assert.Contains(t, err.Error(), "not a built-in type and not declared safe")
}

func TestSafeTypeMembers(t *testing.T) {
	e := NewEngine()
	e.AddSafeType(product{}, "Title", "Price", "Discounted")
	vars := map[string]any{"p": product{Title: "shoe", price: 10}}

	assert.Equal(t, "shoe 10 5|", render(t, e, "{{ p.title }} {{ p.price }} {{ p.discounted }}|{{ p.secret }}", vars))
	// A proxy that was never converted prints as nothing.
	assert.Equal(t, "[]", render(t, e, "[{{ p }}]", vars))
}

func TestSafeTypeAllMembers(t *testing.T) {
	e := NewEngine()
	e.AddSafeType(&product{})
	vars := map[string]any{"p": &product{Title: "shoe", price: 10}}
	assert.Equal(t, "shoe hidden 10", render(t, e, "{{ p.title }} {{ p.secret }} {{ p.price }}", vars))
}

func TestSafeTypeWithValue(t *testing.T) {
	e := NewEngine()
	e.AddSafeTypeWithValue(product{}, func(v any) any { return v.(product).Title }, "Title")
	assert.Equal(t, "shoe", render(t, e, "{{ p }}", map[string]any{"p": product{Title: "shoe"}}))
}

func TestSafeTypeTransformer(t *testing.T) {
	e := NewEngine()
	e.AddSafeTypeTransformer(product{}, func(v any) any {
		p := v.(product)
		return map[string]any{"name": p.Title, "cents": p.price * 100}
	})
	assert.Equal(t, "shoe 1000", render(t, e, "{{ p.name }} {{ p.cents }}", map[string]any{"p": product{Title: "shoe", price: 10}}))
}

type labeled interface{ Label() string }

type badge struct{ text string }

func (b badge) Label() string { return "[" + b.text + "]" }

func TestSafeInterfaceTransformer(t *testing.T) {
	e := NewEngine()
	AddSafeInterfaceTransformer(e, func(l labeled) any { return l.Label() })
	assert.Equal(t, "[new]", render(t, e, "{{ b }}", map[string]any{"b": badge{"new"}}))
	assert.Panics(t, func() { AddSafeInterfaceTransformer(e, func(b badge) any { return nil }) })
}

type drop struct{ n int }

func (d drop) ToLiquid() any { return map[string]any{"double": d.n * 2} }

func TestLiquidizable(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, "8", render(t, e, "{{ d.double }}", map[string]any{"d": drop{4}}))
}

type settings map[string]string

func (s settings) ContainsKey(key string) bool {
	_, ok := s[key]
	return ok
}

func (s settings) Get(key string) any { return strings.ToUpper(s[key]) }

func TestIndexable(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, "DARK", render(t, e, "{{ s.theme }}", map[string]any{"s": settings{"theme": "dark"}}))
}

type account struct{ Name string }

func TestOutputLiquidizesElements(t *testing.T) {
	e := NewEngine(WithErrorsOutputMode(Rethrow))
	vars := map[string]any{"users": []account{{Name: "Ada"}}}
	for _, src := range []string{"{{ users }}", "{{ users | first }}", "{{ users | join: ',' }}", "{% cycle users, 'x' %}"} {
		tmpl, err := e.Parse(src)
		require.NoError(t, err)
		_, err = tmpl.Render(vars)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, ErrUnsafeType), src)
	}

	e = NewEngine()
	e.AddSafeType(account{})
	assert.Equal(t, "[]", render(t, e, "[{{ users }}]", vars))
	assert.Equal(t, "[]", render(t, e, "[{{ users | first }}]", vars))
	assert.Equal(t, "Ada", render(t, e, "{{ users[0].name }}", vars))
	assert.Equal(t, "Ada", render(t, e, "{{ users | map: 'name' | join: ',' }}", vars))
}

type gauge struct{ level int }

func (g gauge) Value() int { return g.level }

func (g gauge) Pair() (string, bool) { return "x", true }

func (g gauge) Level() (int, error) {
	if g.level < 0 {
		return 0, errors.New("sensor offline")
	}
	return g.level, nil
}

func (g gauge) Peak() int {
	if g.level > 100 {
		panic("overflow")
	}
	return g.level
}

func TestSafeTypeMethodResults(t *testing.T) {
	e := NewEngine()
	e.AddSafeType(gauge{})
	assert.Equal(t, "3 3 3|", render(t, e, "{{ g.value }} {{ g.level }} {{ g.peak }}|{{ g.pair }}", map[string]any{"g": gauge{3}}))

	e = NewEngine(WithErrorsOutputMode(Rethrow))
	e.AddSafeType(gauge{})
	tmpl, err := e.Parse("{{ g.level }}")
	require.NoError(t, err)
	_, err = tmpl.Render(map[string]any{"g": gauge{-1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender))
	assert.Contains(t, err.Error(), "sensor offline")

	tmpl, err = e.Parse("{{ g.peak }}")
	require.NoError(t, err)
	_, err = tmpl.Render(map[string]any{"g": gauge{101}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Member 'Peak' failed: overflow")
}

func TestAddTag(t *testing.T) {
	e := NewEngine()
	AddTagType[shoutTag](e, "shout")
	assert.Equal(t, "HEY", render(t, e, "{% shout hey %}", nil))

	// Re-registering replaces the tag.
	e.AddTag("shout", func() Tag { return &shoutTag{suffix: "!"} })
	assert.Equal(t, "HEY!", render(t, e, "{% shout hey %}", nil))
}

type shoutTag struct {
	word   string
	suffix string
}

func (s *shoutTag) Initialize(_ *Builder, _, markup string) error {
	s.word = strings.TrimSpace(markup)
	return nil
}

func (s *shoutTag) Render(_ *Context, out *strings.Builder) (Flow, error) {
	out.WriteString(strings.ToUpper(s.word) + s.suffix)
	return FlowNext, nil
}

func TestNamingConventions(t *testing.T) {
	vars := map[string]any{"UserName": "ann"}

	e := NewEngine(WithNamingConvention(naming.Permissive))
	assert.Equal(t, "ANN", render(t, e, "{{ user_name | UpCase }}", vars))
	assert.Equal(t, "yes", render(t, e, "{% if user_name StartsWith 'a' %}yes{% endif %}", vars))

	e = NewEngine(WithNamingConvention(naming.CaseInsensitive))
	assert.Equal(t, "ann", render(t, e, "{{ username }}", vars))

	e = NewEngine()
	assert.Equal(t, "", render(t, e, "{{ username }}", vars))
}

func TestLocale(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Parse("{{ s | plus: 1 }}")
	require.NoError(t, err)
	out, err := tmpl.RenderWith(RenderParameters{
		LocalVariables: map[string]any{"s": "1,5"},
		Locale:         language.German,
	})
	require.NoError(t, err)
	assert.Equal(t, "2,5", out)
}

func TestErrorsCollected(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Parse("{{ a }}{{ 'x' | nosuch }}{{ b }}")
	require.NoError(t, err)
	ctx, err := e.NewContext(RenderParameters{})
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, tmpl.RenderTo(&out, ctx))
	assert.Equal(t, "Liquid error: Filter 'nosuch' could not be found", out.String())
	require.Len(t, ctx.Errors(), 3)
	assert.ErrorIs(t, ctx.Errors()[0], ErrVariableNotFound)
	assert.ErrorIs(t, ctx.Errors()[1], ErrFilterNotFound)
	assert.ErrorIs(t, ctx.Err(), ErrVariableNotFound)
}

func TestDisplaySyntaxError(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Parse("{% include 'bad' %}")
	require.NoError(t, err)
	ctx, err := e.NewContext(RenderParameters{
		Registers: map[string]any{"file_system": filesystem.NewMemory(map[string]string{"bad": "{% if %}"})},
	})
	require.NoError(t, err)
	var out strings.Builder
	require.NoError(t, tmpl.RenderTo(&out, ctx))
	assert.True(t, strings.HasPrefix(out.String(), "Liquid syntax error: "), out.String())
}

func TestTimeout(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Parse("{% for i in (1..100000) %}{{ slow }}{% endfor %}")
	require.NoError(t, err)
	vars := map[string]any{"slow": func() any { time.Sleep(time.Millisecond); return "" }}
	_, err = tmpl.RenderWith(RenderParameters{LocalVariables: vars, Timeout: 20 * time.Millisecond, ErrorsOutputMode: Suppress})
	require.Error(t, err)
	assert.True(t, IsRuntimeLimit(err))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCancellation(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Parse("{% for i in (1..10) %}{{ i }}{% endfor %}")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tmpl.RenderWith(RenderParameters{Context: ctx})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIterationBudgetSpansLoops(t *testing.T) {
	e := NewEngine(WithMaxIterations(5))
	tmpl, err := e.Parse("{% for i in (1..3) %}{% endfor %}{% for i in (1..3) %}{% endfor %}")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	assert.ErrorIs(t, err, ErrMaxIterations)

	ctx, err := e.NewContext(RenderParameters{MaxIterations: 10})
	require.NoError(t, err)
	require.NoError(t, tmpl.RenderTo(&strings.Builder{}, ctx))
	assert.Equal(t, int64(6), ctx.Iterations())
}

func TestConcurrentRenders(t *testing.T) {
	e := NewEngine(WithCachedFileSystem(filesystem.NewMemory(map[string]string{
		"layout": "<{% block body %}{% endblock %}>",
	})))
	tmpl, err := e.Parse("{% extends 'layout' %}{% block body %}{% for i in (1..n) %}{% cycle 'a', 'b' %}{% endfor %}{% increment c %}{% endblock %}")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tmpl.Render(map[string]any{"n": i%4 + 1})
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		require.NoError(t, errs[i])
		want := "<" + strings.Repeat("ab", 3)[:i%4+1] + "0>"
		assert.Equal(t, want, out, "render %d", i)
	}
}

func TestAddTemplate(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddTemplate("header", "<h1>{{ title }}</h1>"))
	assert.Equal(t, "<h1>Hi</h1>", render(t, e, "{% include 'header' %}", map[string]any{"title": "Hi"}))

	err := e.AddTemplate("broken", "{% if %}")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParseErrorLine(t *testing.T) {
	e := NewEngine()
	_, err := e.ParseNamed("page", "line one\n{% if a %}\nnever closed")
	require.Error(t, err)
	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrSyntax, le.Kind)
	assert.Equal(t, "page", le.Name)
	assert.Contains(t, err.Error(), "page line")
}

func ExampleTemplate_Render() {
	e := NewEngine()
	tmpl, err := e.Parse("{% for p in products %}{{ p.title | upcase }}{% unless forloop.last %}, {% endunless %}{% endfor %}")
	if err != nil {
		panic(err)
	}
	out, err := tmpl.Render(map[string]any{
		"products": []map[string]any{{"title": "shoe"}, {"title": "hat"}},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(out)
	// Output: SHOE, HAT
}
