package liquid

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fluidity/liquid/value"
)

// FilterCall is one step of a filter chain: {{ x | name: arg1, arg2 }}.
type FilterCall struct {
	Name string
	Args []string
}

// Variable is an expression followed by a filter chain. The expression and
// the arguments are kept as source fragments and resolved at render time.
type Variable struct {
	Name    string
	Filters []FilterCall
}

// ParseVariable parses the markup of a {{ }} construct, or the right hand
// side of an assign.
func (b *Builder) ParseVariable(markup string) (*Variable, error) {
	return parseVariable(markup)
}

func parseVariable(markup string) (*Variable, error) {
	parts := splitOutsideQuotes(markup, '|')
	v := &Variable{Name: strings.TrimSpace(parts[0])}
	if v.Name != "" {
		if f := fragments(v.Name); len(f) > 0 {
			v.Name = f[0]
		}
	}
	for _, part := range parts[1:] {
		m := filterNameRe.FindStringSubmatch(part)
		if m == nil {
			if strings.TrimSpace(part) == "" {
				continue
			}
			return nil, fmt.Errorf("Invalid filter '%s' in '%s'", strings.TrimSpace(part), strings.TrimSpace(markup))
		}
		call := FilterCall{Name: m[1]}
		rest := strings.TrimSpace(part[len(m[0]):])
		if rest != "" {
			if rest[0] != ':' {
				return nil, fmt.Errorf("Invalid filter arguments '%s' for filter '%s'", rest, call.Name)
			}
			for _, arg := range splitOutsideQuotes(rest[1:], ',') {
				if arg = strings.TrimSpace(arg); arg != "" {
					call.Args = append(call.Args, arg)
				}
			}
		}
		v.Filters = append(v.Filters, call)
	}
	return v, nil
}

// Evaluate resolves the expression and runs the filter chain. The result has
// been converted with ConvertToValueType if it supports it.
func (v *Variable) Evaluate(ctx *Context) (any, error) {
	var cur any
	if v.Name != "" {
		r, err := ctx.Resolve(v.Name)
		if err != nil {
			return nil, err
		}
		cur = r
	}
	for _, f := range v.Filters {
		args := make([]any, len(f.Args))
		for i, expr := range f.Args {
			a, err := ctx.Resolve(expr)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		r, err := ctx.invokeFilter(f.Name, cur, args)
		if err != nil {
			return nil, err
		}
		cur = r
	}
	return value.ConvertToValueType(cur), nil
}

func (v *Variable) String() string {
	var b strings.Builder
	b.WriteString(v.Name)
	for _, f := range v.Filters {
		b.WriteString(" | ")
		b.WriteString(f.Name)
		if len(f.Args) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(f.Args, ", "))
		}
	}
	return b.String()
}

// VariableNode outputs a Variable.
type VariableNode struct {
	Variable *Variable
	Line     int
}

func (n *VariableNode) Render(ctx *Context, out *strings.Builder) (Flow, error) {
	r, err := n.Variable.Evaluate(ctx)
	if err != nil {
		if le := asError(err); le.Line == 0 {
			le.Line = n.Line
			err = le
		}
		return FlowNext, err
	}
	s, err := ctx.display(r, 0)
	if err != nil {
		if le := asError(err); le.Line == 0 {
			le.Line = n.Line
			err = le
		}
		return FlowNext, err
	}
	out.WriteString(s)
	return FlowNext, nil
}

// display renders a value for output. The value and every element of a
// sequence or map pass through liquidize, so a type that was not declared
// safe is an error here as anywhere else. Safe-type proxies without a value
// conversion print as nothing.
func (ctx *Context) display(v any, depth int) (string, error) {
	if depth > maxLiquidizeDepth {
		return "", nil
	}
	v, err := ctx.liquidize(v)
	if err != nil {
		return "", err
	}
	if p, ok := v.(*SafeProxy); ok {
		if p.toValue == nil {
			return "", nil
		}
		return ctx.display(p.ConvertToValueType(), depth+1)
	}
	switch value.KindOf(v) {
	case value.KindSeq, value.KindMap:
		if _, ok := v.(value.Range); ok {
			break
		}
		items, _ := value.Iterate(v)
		var b strings.Builder
		for _, it := range items {
			s, err := ctx.display(it, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}
	return ctx.Stringify(v), nil
}

// Stringify converts a value to its output form. Sequences and maps are
// concatenated, numbers printed with the context's locale. Nil and values
// without a text form print nothing.
func (ctx *Context) Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return ctx.loc.FormatFloat(t, 64)
	case float32:
		return ctx.loc.FormatFloat(float64(t), 32)
	case decimal.Decimal:
		return ctx.loc.FormatDecimal(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05 -0700")
	case uuid.UUID:
		return t.String()
	case value.Marker:
		return ""
	case value.Range:
		return t.String()
	case fmt.Stringer:
		if !value.IsNumber(v) {
			return t.String()
		}
	}
	if value.IsNil(v) {
		return ""
	}
	if k, ok := value.NumberKindOf(v); ok {
		rv := reflect.ValueOf(v)
		switch {
		case k <= value.NumInt64:
			return strconv.FormatInt(rv.Int(), 10)
		case k <= value.NumUint64:
			return strconv.FormatUint(rv.Uint(), 10)
		case k == value.NumFloat32:
			return ctx.loc.FormatFloat(rv.Float(), 32)
		case k == value.NumFloat64:
			return ctx.loc.FormatFloat(rv.Float(), 64)
		default:
			d, _ := value.ToDecimal(v)
			return ctx.loc.FormatDecimal(d)
		}
	}
	switch value.KindOf(v) {
	case value.KindSeq, value.KindMap:
		items, _ := value.Iterate(v)
		var b strings.Builder
		for _, it := range items {
			b.WriteString(ctx.Stringify(it))
		}
		return b.String()
	}
	return ""
}
