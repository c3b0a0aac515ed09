package liquid

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/fluidity/liquid/naming"
	"github.com/fluidity/liquid/value"
)

// FilterFunc is the most general filter signature. Any function whose first
// parameter (after an optional *Context) receives the piped input can be
// registered; FilterFunc is a convenient shape for variadic filters.
type FilterFunc func(ctx *Context, input any, args ...any) (any, error)

// FilterOption configures a filter registered with AddFilter.
type FilterOption func(*filterFunc)

// WithDefaults declares default values for the trailing parameters of a
// filter, used when a template supplies fewer arguments.
func WithDefaults(defaults ...any) FilterOption {
	return func(f *filterFunc) { f.defaults = defaults }
}

// FilterDefaulter is implemented by filter objects that declare default
// argument values. Keys are Go method names or filter names.
type FilterDefaulter interface {
	FilterDefaults() map[string][]any
}

var (
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeFor[error]()
	anyType     = reflect.TypeFor[any]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
)

type filterFunc struct {
	name     string
	fn       reflect.Value
	withCtx  bool
	params   []reflect.Type // includes the input, excludes *Context
	variadic bool
	defaults []any
}

func newFilterFunc(name string, fn any, opts []FilterOption) (*filterFunc, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("filter %s: %T is not a function", name, fn)
	}
	t := rv.Type()
	f := &filterFunc{name: name, fn: rv, variadic: t.IsVariadic()}
	start := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		f.withCtx = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		f.params = append(f.params, t.In(i))
	}
	if len(f.params) == 0 || (f.variadic && len(f.params) == 1) {
		return nil, fmt.Errorf("filter %s: function must take the input as a parameter", name)
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("filter %s: second result must be an error", name)
		}
	default:
		return nil, fmt.Errorf("filter %s: function must return one value and an optional error", name)
	}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.defaults) > f.fixed()-1 {
		return nil, fmt.Errorf("filter %s: %d defaults for %d parameters", name, len(f.defaults), f.fixed()-1)
	}
	return f, nil
}

// fixed is the number of non-variadic parameters, counting the input.
func (f *filterFunc) fixed() int {
	if f.variadic {
		return len(f.params) - 1
	}
	return len(f.params)
}

func (f *filterFunc) defaultFor(i int) (any, bool) {
	k := i - (f.fixed() - len(f.defaults))
	if k < 0 || k >= len(f.defaults) {
		return nil, false
	}
	return f.defaults[k], true
}

// addCandidate adds f to the overloads of its name. A candidate with the same
// arity is replaced.
func addCandidate(list []*filterFunc, f *filterFunc) []*filterFunc {
	for i, c := range list {
		if c.fixed() == f.fixed() && c.variadic == f.variadic {
			out := append([]*filterFunc(nil), list...)
			out[i] = f
			return out
		}
	}
	return append(append([]*filterFunc(nil), list...), f)
}

type methodInfo struct {
	index  int
	goName string
}

var methodCache sync.Map // reflect.Type -> []methodInfo

func filterMethods(t reflect.Type) []methodInfo {
	if cached, ok := methodCache.Load(t); ok {
		return cached.([]methodInfo)
	}
	var out []methodInfo
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.Name == "FilterDefaults" {
			continue
		}
		out = append(out, methodInfo{index: i, goName: m.Name})
	}
	cached, _ := methodCache.LoadOrStore(t, out)
	return cached.([]methodInfo)
}

// methodFilters turns the filter-shaped exported methods of obj into
// filters named by the convention.
func methodFilters(obj any, conv naming.Convention) ([]*filterFunc, error) {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return nil, fmt.Errorf("filters: nil filter object")
	}
	var defaults map[string][]any
	if d, ok := obj.(FilterDefaulter); ok {
		defaults = d.FilterDefaults()
	}
	var out []*filterFunc
	for _, m := range filterMethods(rv.Type()) {
		if !filterShaped(rv.Method(m.index).Type()) {
			continue
		}
		name := conv.MemberName(m.goName)
		var opts []FilterOption
		if d, ok := defaults[m.goName]; ok {
			opts = append(opts, WithDefaults(d...))
		} else if d, ok := defaults[name]; ok {
			opts = append(opts, WithDefaults(d...))
		}
		f, err := newFilterFunc(name, rv.Method(m.index).Interface(), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("filters: %T has no methods usable as filters", obj)
	}
	return out, nil
}

// filterShaped reports whether a method can serve as a filter: it takes the
// input, after an optional *Context, and returns a value and an optional
// error. Other methods of a filter object are skipped.
func filterShaped(t reflect.Type) bool {
	n := t.NumIn()
	if n > 0 && t.In(0) == contextType {
		n--
	}
	if n == 0 || (t.IsVariadic() && n == 1) {
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1) == errorType
	}
	return false
}

// AddFilter registers fn as the filter name. A filter with the same name and
// a different number of parameters is kept as an overload.
func (e *Engine) AddFilter(name string, fn any, opts ...FilterOption) error {
	f, err := newFilterFunc(name, fn, opts)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[name] = addCandidate(e.filters[name], f)
	return nil
}

// AddFilters registers the exported methods of obj as filters. Methods that
// cannot take the piped input, such as String, are skipped. Method names
// are converted with the engine's naming convention, so HTMLEscape becomes
// html_escape.
func (e *Engine) AddFilters(obj any) error {
	fns, err := methodFilters(obj, e.naming)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range fns {
		e.filters[f.name] = addCandidate(e.filters[f.name], f)
	}
	return nil
}

// candidates returns the overloads of name: per-render filters first, then
// the engine's.
func (ctx *Context) candidates(name string) []*filterFunc {
	e := ctx.engine
	e.mu.RLock()
	global := findFilter(e.filters, name, ctx.naming)
	e.mu.RUnlock()
	local := findFilter(ctx.filters, name, ctx.naming)
	if len(local) == 0 {
		return global
	}
	out := global
	for _, f := range local {
		out = addCandidate(out, f)
	}
	return out
}

func findFilter(table map[string][]*filterFunc, name string, conv naming.Convention) []*filterFunc {
	if list, ok := table[name]; ok {
		return list
	}
	if conv == naming.Exact {
		return nil
	}
	for k, list := range table {
		if conv.Equal(k, name) {
			return list
		}
	}
	return nil
}

// selectFilter picks the overload for n supplied values, input included:
// the exact arity, then a variadic candidate that accepts n, then the
// candidate with the most parameters.
func selectFilter(cands []*filterFunc, n int) *filterFunc {
	for _, f := range cands {
		if !f.variadic && len(f.params) == n {
			return f
		}
	}
	for _, f := range cands {
		if f.variadic && f.fixed() <= n {
			return f
		}
	}
	var best *filterFunc
	for _, f := range cands {
		if best == nil || len(f.params) > len(best.params) {
			best = f
		}
	}
	return best
}

func (ctx *Context) invokeFilter(name string, input any, args []any) (result any, err error) {
	f := selectFilter(ctx.candidates(name), 1+len(args))
	if f == nil {
		return nil, Errorf(ErrFilterNotFound, "Filter '%s' could not be found", name)
	}
	supplied := append([]any{input}, args...)
	if !f.variadic && len(supplied) > len(f.params) {
		return nil, Errorf(ErrArgument, "Filter '%s' takes %d arguments, got %d", name, len(f.params)-1, len(args))
	}

	in := make([]reflect.Value, 0, len(supplied)+1)
	if f.withCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i := 0; i < f.fixed(); i++ {
		var a any
		if i < len(supplied) {
			a = supplied[i]
		} else {
			d, ok := f.defaultFor(i)
			if !ok {
				return nil, Errorf(ErrArgument, "Filter '%s' is missing argument %d", name, i)
			}
			a = d
		}
		v, err := ctx.convertArg(a, f.params[i])
		if err != nil {
			return nil, Errorf(ErrArgument, "Filter '%s' argument %d: %v", name, i, err)
		}
		in = append(in, v)
	}
	if f.variadic {
		elem := f.params[len(f.params)-1].Elem()
		for i := f.fixed(); i < len(supplied); i++ {
			v, err := ctx.convertArg(supplied[i], elem)
			if err != nil {
				return nil, Errorf(ErrArgument, "Filter '%s' argument %d: %v", name, i, err)
			}
			in = append(in, v)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, Errorf(ErrRender, "Filter '%s' failed: %v", name, r)
		}
	}()
	out := f.fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// integerArg converts an integer parameter. Fractional numbers are rejected
// rather than truncated and strings must be base-10 integers.
func integerArg(a any) (int64, error) {
	if s, ok := a.(string); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", s)
		}
		return i, nil
	}
	if !value.IsNumber(a) {
		return cast.ToInt64E(a)
	}
	if rv := reflect.ValueOf(a); rv.CanFloat() {
		if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, fmt.Errorf("%v is not an integer", a)
		}
	}
	d, _ := value.ToDecimal(a)
	if !d.IsInteger() {
		return 0, fmt.Errorf("%v is not an integer", a)
	}
	i, ok := value.ToInt64(d)
	if !ok {
		return 0, fmt.Errorf("%v is out of range", a)
	}
	return i, nil
}

// convertArg adapts a template value to a parameter type. Numbers are
// narrowed or widened when the value is representable.
func (ctx *Context) convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil || value.IsNil(a) {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	if t == anyType {
		return av, nil
	}
	if t == decimalType {
		if d, ok := value.ToDecimal(a); ok {
			return reflect.ValueOf(d), nil
		}
		if s, ok := a.(string); ok {
			if d, ok := ctx.loc.ParseDecimal(strings.TrimSpace(s)); ok {
				return reflect.ValueOf(d), nil
			}
		}
		return reflect.Value{}, fmt.Errorf("cannot convert %T to a decimal", a)
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(ctx.Stringify(a)).Convert(t), nil
	case reflect.Bool:
		b, err := cast.ToBoolE(a)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := integerArg(a)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %v to %s: %w", a, t, err)
		}
		v := reflect.New(t).Elem()
		if v.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("%d does not fit in %s", i, t)
		}
		v.SetInt(i)
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := integerArg(a)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot convert %v to %s: %w", a, t, err)
		}
		v := reflect.New(t).Elem()
		if i < 0 || v.OverflowUint(uint64(i)) {
			return reflect.Value{}, fmt.Errorf("%d does not fit in %s", i, t)
		}
		v.SetUint(uint64(i))
		return v, nil
	case reflect.Float32, reflect.Float64:
		f, ok := value.ToFloat64(a)
		if !ok {
			s, isString := a.(string)
			if isString {
				f, ok = ctx.loc.ParseFloat(strings.TrimSpace(s))
			}
			if !ok {
				return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", a, t)
			}
		}
		v := reflect.New(t).Elem()
		if v.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%g does not fit in %s", f, t)
		}
		v.SetFloat(f)
		return v, nil
	case reflect.Slice:
		if t.Elem() == anyType {
			if items, ok := value.Iterate(a); ok {
				return reflect.ValueOf(items), nil
			}
			return reflect.ValueOf([]any{a}), nil
		}
	case reflect.Interface:
		if av.Type().Implements(t) {
			return av, nil
		}
	}
	if av.Type().ConvertibleTo(t) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", a, t)
}
