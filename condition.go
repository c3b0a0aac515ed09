package liquid

import (
	"fmt"
	"strings"

	"github.com/fluidity/liquid/naming"
	"github.com/fluidity/liquid/value"
)

type operatorFunc func(left, right any) (bool, error)

var operators = map[string]operatorFunc{
	"==": func(l, r any) (bool, error) { return value.Equal(l, r), nil },
	"!=": func(l, r any) (bool, error) { return !value.Equal(l, r), nil },
	"<>": func(l, r any) (bool, error) { return !value.Equal(l, r), nil },
	"<":  ordering(func(c int) bool { return c < 0 }),
	">":  ordering(func(c int) bool { return c > 0 }),
	"<=": ordering(func(c int) bool { return c <= 0 }),
	">=": ordering(func(c int) bool { return c >= 0 }),

	"contains":    func(l, r any) (bool, error) { return value.Contains(l, r), nil },
	"startswith":  startsWith,
	"starts_with": startsWith,
	"endswith":    endsWith,
	"ends_with":   endsWith,
	"haskey":      func(l, r any) (bool, error) { return value.HasKey(l, r), nil },
	"has_key":     func(l, r any) (bool, error) { return value.HasKey(l, r), nil },
	"hasvalue":    func(l, r any) (bool, error) { return value.HasValue(l, r), nil },
	"has_value":   func(l, r any) (bool, error) { return value.HasValue(l, r), nil },
}

// ordering operators are false when either side is nil.
func ordering(test func(int) bool) operatorFunc {
	return func(l, r any) (bool, error) {
		if value.IsNil(l) || value.IsNil(r) {
			return false, nil
		}
		c, err := value.Compare(l, r)
		if err != nil {
			return false, err
		}
		return test(c), nil
	}
}

func startsWith(l, r any) (bool, error) {
	if s, ok := l.(string); ok {
		p, ok := r.(string)
		return ok && strings.HasPrefix(s, p), nil
	}
	items, ok := value.Iterate(l)
	return ok && len(items) > 0 && value.Equal(items[0], r), nil
}

func endsWith(l, r any) (bool, error) {
	if s, ok := l.(string); ok {
		p, ok := r.(string)
		return ok && strings.HasSuffix(s, p), nil
	}
	items, ok := value.Iterate(l)
	return ok && len(items) > 0 && value.Equal(items[len(items)-1], r), nil
}

func lookupOperator(name string, conv naming.Convention) (operatorFunc, bool) {
	if op, ok := operators[name]; ok {
		return op, true
	}
	for k, op := range operators {
		if conv.Equal(k, name) {
			return op, true
		}
	}
	return nil, false
}

// Condition is a comparison, optionally chained to another condition with
// and/or. The chain is right associative: a and b or c evaluates as
// a and (b or c).
type Condition struct {
	Left     string
	Operator string
	Right    string
	Body     []Node

	op     operatorFunc
	and    bool
	next   *Condition
	isElse bool
}

// ElseCondition is a condition that always matches.
func ElseCondition() *Condition {
	return &Condition{isElse: true}
}

// ParseCondition parses if-style markup: one or more comparisons joined by
// and/or.
func (b *Builder) ParseCondition(markup string) (*Condition, error) {
	return parseCondition(markup, b.Convention())
}

func parseCondition(markup string, conv naming.Convention) (*Condition, error) {
	var groups [][]string
	var joins []string
	cur := []string{}
	for _, w := range words(markup) {
		if conv.Equal(w, "and") || conv.Equal(w, "or") {
			groups = append(groups, cur)
			joins = append(joins, strings.ToLower(w))
			cur = []string{}
			continue
		}
		cur = append(cur, w)
	}
	groups = append(groups, cur)

	var head *Condition
	for i := len(groups) - 1; i >= 0; i-- {
		c, err := newCondition(groups[i], conv)
		if err != nil {
			return nil, err
		}
		if head != nil {
			c.next = head
			c.and = joins[i] == "and"
		}
		head = c
	}
	return head, nil
}

func newCondition(ws []string, conv naming.Convention) (*Condition, error) {
	switch len(ws) {
	case 1:
		return &Condition{Left: ws[0]}, nil
	case 3:
		op, ok := lookupOperator(ws[1], conv)
		if !ok {
			return nil, fmt.Errorf("Unknown operator %s", ws[1])
		}
		return &Condition{Left: ws[0], Operator: ws[1], Right: ws[2], op: op}, nil
	}
	return nil, fmt.Errorf("Syntax Error in 'if' - Valid syntax: if [condition]")
}

// Evaluate reports whether the condition chain holds. It does not modify the
// context apart from recording unresolved variables.
func (c *Condition) Evaluate(ctx *Context) (bool, error) {
	if c.isElse {
		return true, nil
	}
	ok, err := c.evaluateSelf(ctx)
	if err != nil || c.next == nil {
		return ok, err
	}
	if c.and && !ok {
		return false, nil
	}
	if !c.and && ok {
		return true, nil
	}
	return c.next.Evaluate(ctx)
}

func (c *Condition) evaluateSelf(ctx *Context) (bool, error) {
	left, err := ctx.Resolve(c.Left)
	if err != nil {
		return false, err
	}
	if c.op == nil {
		return value.IsTruthy(left) && !isMarker(left), nil
	}
	right, err := ctx.Resolve(c.Right)
	if err != nil {
		return false, err
	}
	return c.op(left, right)
}

func isMarker(v any) bool {
	_, ok := v.(value.Marker)
	return ok
}

// IsElse reports whether the condition always matches.
func (c *Condition) IsElse() bool { return c.isElse }

func (c *Condition) String() string {
	if c.isElse {
		return "else"
	}
	s := c.Left
	if c.Operator != "" {
		s += " " + c.Operator + " " + c.Right
	}
	if c.next != nil {
		join := " or "
		if c.and {
			join = " and "
		}
		s += join + c.next.String()
	}
	return s
}
