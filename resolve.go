package liquid

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/fluidity/liquid/naming"
	"github.com/fluidity/liquid/value"
)

var (
	integerRe  = regexp.MustCompile(`^-?\d+$`)
	rangeRe    = regexp.MustCompile(`^\((\S+)\.\.(\S+)\)$`)
	numberRe   = regexp.MustCompile(`^[+-]?\d[\d.,]*$`)
	pathPartRe = regexp.MustCompile(`\[[^\]]+\]|[\w-]+\??`)
)

// Resolve evaluates an expression: a literal, a range or a variable path
// such as product.variants[0].title. A variable that cannot be found
// resolves to nil and is recorded in Errors; with strict variables it is an
// error instead.
func (ctx *Context) Resolve(expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "", "nil", "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "blank":
		return value.Blank, nil
	case "empty":
		return value.Empty, nil
	}
	if isQuoted(expr) {
		return expr[1 : len(expr)-1], nil
	}
	if integerRe.MatchString(expr) {
		return parseInteger(expr), nil
	}
	if m := rangeRe.FindStringSubmatch(expr); m != nil {
		from, err := ctx.rangeBound(m[1])
		if err != nil {
			return nil, err
		}
		to, err := ctx.rangeBound(m[2])
		if err != nil {
			return nil, err
		}
		return value.Range{From: from, To: to}, nil
	}
	if numberRe.MatchString(expr) {
		if f, ok := ctx.loc.ParseFloat(expr); ok {
			return f, nil
		}
	}
	return ctx.variable(expr)
}

// parseInteger returns the narrowest of int32, int64 and decimal that holds
// the literal.
func parseInteger(s string) any {
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(i)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return decimal.RequireFromString(s)
}

func (ctx *Context) rangeBound(expr string) (int64, error) {
	v, err := ctx.Resolve(expr)
	if err != nil {
		return 0, err
	}
	if i, ok := value.ToInt64(v); ok {
		return i, nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return 0, Errorf(ErrArgument, "Invalid range bound '%s'", expr)
	}
	return i, nil
}

func (ctx *Context) variable(expr string) (any, error) {
	parts := pathPartRe.FindAllString(expr, -1)
	if len(parts) == 0 {
		return ctx.missing(expr)
	}

	name := parts[0]
	if strings.HasPrefix(name, "[") {
		k, err := ctx.Resolve(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		name = ctx.Stringify(k)
	}
	cur, found := ctx.findVariable(name)
	if !found {
		return ctx.missing(expr)
	}
	cur, err := ctx.liquidize(ctx.call(cur))
	if err != nil {
		return nil, err
	}

	for _, part := range parts[1:] {
		var key any = part
		bracket := strings.HasPrefix(part, "[")
		if bracket {
			k, err := ctx.Resolve(part[1 : len(part)-1])
			if err != nil {
				return nil, err
			}
			key = k
		}
		next, ok, err := ctx.memberOf(cur, key)
		if err != nil {
			return nil, err
		}
		if !ok && !bracket {
			next, ok = special(cur, part)
		}
		if !ok {
			return ctx.missing(expr)
		}
		if cur, err = ctx.liquidize(ctx.call(next)); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// findVariable scans the scopes innermost first, then the environments.
func (ctx *Context) findVariable(name string) (any, bool) {
	for i := len(ctx.scopes) - 1; i >= 0; i-- {
		if v, ok := ctx.lookupKey(ctx.scopes[i], name); ok {
			return v, true
		}
	}
	for _, env := range ctx.environments {
		if v, ok := ctx.lookupKey(env, name); ok {
			return v, true
		}
	}
	return nil, false
}

// lookupKey looks up name exactly, then through the naming convention.
func (ctx *Context) lookupKey(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	if ctx.naming == nil || ctx.naming == naming.Exact {
		return nil, false
	}
	for k, v := range m {
		if ctx.naming.Equal(k, name) {
			return v, true
		}
	}
	return nil, false
}

// call evaluates lazily computed values.
func (ctx *Context) call(v any) any {
	switch fn := v.(type) {
	case func() any:
		return fn()
	case func(*Context) any:
		return fn(ctx)
	}
	return v
}

// fallibleMembers is implemented by values whose members can fail to load.
type fallibleMembers interface {
	lookup(key string) (any, bool, error)
}

// memberOf is member with load failures reported.
func (ctx *Context) memberOf(cur, key any) (any, bool, error) {
	if f, ok := cur.(fallibleMembers); ok {
		skey, isString := key.(string)
		if !isString {
			skey = ctx.Stringify(key)
		}
		return f.lookup(skey)
	}
	next, ok := ctx.member(cur, key)
	return next, ok, nil
}

// member resolves key against cur: map key, sequence index, field of an
// anonymous struct or Indexable member, in that order.
func (ctx *Context) member(cur, key any) (any, bool) {
	if value.IsNil(cur) {
		return nil, false
	}
	skey, isString := key.(string)
	switch c := cur.(type) {
	case map[string]any:
		if isString {
			return ctx.lookupKey(c, skey)
		}
		return ctx.lookupKey(c, ctx.Stringify(key))
	case value.Range:
		if i, ok := value.ToInt64(key); ok && value.IsNumber(key) {
			return c.At(int(i))
		}
		return nil, false
	case value.Indexable:
		if !isString {
			skey = ctx.Stringify(key)
		}
		if c.ContainsKey(skey) {
			return c.Get(skey), true
		}
		return nil, false
	}

	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return ctx.reflectMapKey(rv, key)
	case reflect.Slice, reflect.Array:
		if i, ok := value.ToInt64(key); ok && value.IsNumber(key) {
			return value.Index(rv.Interface(), int(i))
		}
	case reflect.Struct:
		if rv.Type().Name() == "" && isString {
			return ctx.structField(rv, skey)
		}
	}
	if e, ok := cur.(value.Enumerable); ok {
		if i, ok := value.ToInt64(key); ok && value.IsNumber(key) {
			return value.Index(e.Items(), int(i))
		}
	}
	return nil, false
}

func (ctx *Context) reflectMapKey(rv reflect.Value, key any) (any, bool) {
	kt := rv.Type().Key()
	kv := reflect.ValueOf(key)
	if kv.IsValid() && kv.Type().ConvertibleTo(kt) && (kt.Kind() != reflect.String || kv.Kind() == reflect.String) {
		if v := rv.MapIndex(kv.Convert(kt)); v.IsValid() {
			return v.Interface(), true
		}
	}
	if kt.Kind() != reflect.String {
		return nil, false
	}
	name := ctx.Stringify(key)
	iter := rv.MapRange()
	for iter.Next() {
		if ctx.naming.Equal(iter.Key().String(), name) {
			return iter.Value().Interface(), true
		}
	}
	return nil, false
}

func (ctx *Context) structField(rv reflect.Value, name string) (any, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == name || ctx.naming.Equal(ctx.naming.MemberName(f.Name), name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// special implements size, first and last on enumerables and size on
// strings.
func special(cur any, name string) (any, bool) {
	if s, ok := cur.(string); ok {
		if name == "size" {
			return len([]rune(s)), true
		}
		return nil, false
	}
	if !value.IsEnumerable(cur) {
		return nil, false
	}
	switch name {
	case "size":
		n, _ := value.Len(cur)
		return n, true
	case "first":
		if v, ok := value.Index(cur, 0); ok {
			return v, true
		}
		if items, ok := value.Iterate(cur); ok && len(items) > 0 {
			return items[0], true
		}
		return nil, true
	case "last":
		if v, ok := value.Index(cur, -1); ok {
			return v, true
		}
		if items, ok := value.Iterate(cur); ok && len(items) > 0 {
			return items[len(items)-1], true
		}
		return nil, true
	}
	return nil, false
}

func (ctx *Context) missing(expr string) (any, error) {
	err := Errorf(ErrVariableNotFound, "Variable '%s' was not found", expr)
	ctx.logger.Debug("liquid variable not found", "template", ctx.name, "variable", expr)
	if ctx.strict {
		return nil, err
	}
	ctx.record(err)
	return nil, nil
}
