package liquid

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fluidity/liquid/naming"
	"github.com/fluidity/liquid/value"
)

// maxLiquidizeDepth bounds chains of ToLiquid calls and transformers.
const maxLiquidizeDepth = 16

type safeType struct {
	members   []string
	toValue   func(any) any
	transform func(any) any
}

type ifaceTransformer struct {
	iface reflect.Type
	fn    func(any) any
}

// AddSafeType allows templates to read the listed fields and zero-argument
// methods of values of sample's type. With no members listed, every
// exported field and method is readable. Values are wrapped in a SafeProxy.
func (e *Engine) AddSafeType(sample any, members ...string) {
	e.addSafeType(sample, &safeType{members: members})
}

// AddSafeTypeWithValue is AddSafeType with a conversion that runs when the
// proxy itself is printed or passed through a filter chain.
func (e *Engine) AddSafeTypeWithValue(sample any, toValue func(any) any, members ...string) {
	e.addSafeType(sample, &safeType{members: members, toValue: toValue})
}

// AddSafeTypeTransformer registers fn to convert values of sample's type
// into template-safe values.
func (e *Engine) AddSafeTypeTransformer(sample any, fn func(any) any) {
	e.addSafeType(sample, &safeType{transform: fn})
}

// AddSafeInterfaceTransformer registers fn for every value implementing T.
// Exact type registrations take precedence; interfaces are tried in
// registration order.
func AddSafeInterfaceTransformer[T any](e *Engine, fn func(T) any) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("liquid: %s is not an interface type", t))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ifaces = append(e.ifaces, ifaceTransformer{iface: t, fn: func(v any) any { return fn(v.(T)) }})
}

func (e *Engine) addSafeType(sample any, st *safeType) {
	t := reflect.TypeOf(sample)
	if t == nil {
		panic("liquid: cannot register nil as a safe type")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.safeTypes[t] = st
}

func (e *Engine) lookupSafeType(t reflect.Type) (*safeType, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if st, ok := e.safeTypes[t]; ok {
		return st, true
	}
	if t.Kind() == reflect.Pointer {
		if st, ok := e.safeTypes[t.Elem()]; ok {
			return st, true
		}
	}
	return nil, false
}

func (e *Engine) interfaceTransformer(t reflect.Type) func(any) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, it := range e.ifaces {
		if t.Implements(it.iface) {
			return it.fn
		}
	}
	return nil
}

func (ctx *Context) liquidize(v any) (any, error) {
	return ctx.engine.liquidize(v)
}

// liquidize converts a resolved value into something templates may see.
// Built-in types pass through, Liquidizable values convert themselves,
// registered types are transformed or wrapped in a SafeProxy. Anything else
// is an ErrUnsafeType error.
func (e *Engine) liquidize(v any) (any, error) {
	for range maxLiquidizeDepth {
		switch v.(type) {
		case nil, string, bool, decimal.Decimal, *big.Int, big.Int, time.Time, time.Duration, uuid.UUID,
			value.Range, value.Marker, []any, map[string]any, *SafeProxy,
			func() any, func(*Context) any:
			return v, nil
		}
		if value.IsNil(v) {
			return nil, nil
		}
		if value.IsNumber(v) || value.IsEnum(v) {
			return v, nil
		}
		if l, ok := v.(value.Liquidizable); ok {
			v = l.ToLiquid()
			continue
		}

		t := reflect.TypeOf(v)
		if st, ok := e.lookupSafeType(t); ok {
			if st.transform != nil {
				v = st.transform(v)
				continue
			}
			return newSafeProxy(v, st, e.naming), nil
		}
		if fn := e.interfaceTransformer(t); fn != nil {
			v = fn(v)
			continue
		}
		switch v.(type) {
		case value.Indexable, value.Enumerable:
			return v, nil
		}

		switch t.Kind() {
		case reflect.String, reflect.Bool, reflect.Slice, reflect.Array, reflect.Map:
			return v, nil
		case reflect.Struct:
			if t.Name() == "" {
				return v, nil
			}
		case reflect.Pointer:
			if t.Elem().Kind() == reflect.Struct && t.Elem().Name() == "" {
				return v, nil
			}
		}
		return nil, Errorf(ErrUnsafeType, "Object '%T' is not a built-in type and not declared safe", v)
	}
	return nil, Errorf(ErrUnsafeType, "Object '%T' did not convert to a built-in type", v)
}

// SafeProxy is a restricted view of a registered safe type. Templates see
// only the allowed members, under their template names.
type SafeProxy struct {
	obj     reflect.Value
	members map[string]string
	naming  naming.Convention
	toValue func(any) any
}

func newSafeProxy(v any, st *safeType, conv naming.Convention) *SafeProxy {
	obj := reflect.ValueOf(v)
	if obj.Kind() != reflect.Pointer {
		// An addressable copy makes pointer receiver methods callable.
		addr := reflect.New(obj.Type())
		addr.Elem().Set(obj)
		obj = addr.Elem()
	}
	p := &SafeProxy{obj: obj, members: map[string]string{}, naming: conv, toValue: st.toValue}
	names := st.members
	if len(names) == 0 {
		names = exportedMembers(p.obj.Type())
	}
	for _, n := range names {
		p.members[conv.MemberName(n)] = n
	}
	return p
}

func exportedMembers(t reflect.Type) []string {
	var out []string
	mt := t
	if mt.Kind() != reflect.Pointer {
		mt = reflect.PointerTo(t)
	}
	for i := 0; i < mt.NumMethod(); i++ {
		if m := mt.Method(i); m.Type.NumIn() == 1 && memberSignature(m.Type, 1) {
			out = append(out, m.Name)
		}
	}
	st := mt.Elem()
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if f.IsExported() && !f.Anonymous {
				out = append(out, f.Name)
			}
		}
	}
	return out
}

// memberSignature reports whether a method type with the given number of
// inputs returns either a single value or a value and an error.
func memberSignature(t reflect.Type, numIn int) bool {
	if t.NumIn() != numIn {
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

func (p *SafeProxy) goName(key string) (string, bool) {
	if n, ok := p.members[key]; ok {
		return n, true
	}
	for tmpl, n := range p.members {
		if n == key || p.naming.Equal(tmpl, key) {
			return n, true
		}
	}
	return "", false
}

// ContainsKey reports whether key names an allowed member.
func (p *SafeProxy) ContainsKey(key string) bool {
	n, ok := p.goName(key)
	if !ok {
		return false
	}
	if m := p.method(n); m.IsValid() {
		return memberSignature(m.Type(), 0)
	}
	return p.field(n).IsValid()
}

// Get returns the value of the allowed member key. A member whose method
// fails reads as nil; templates resolve members through lookup, which
// reports the failure.
func (p *SafeProxy) Get(key string) any {
	v, _, _ := p.lookup(key)
	return v
}

func (p *SafeProxy) lookup(key string) (any, bool, error) {
	n, ok := p.goName(key)
	if !ok {
		return nil, false, nil
	}
	if m := p.method(n); m.IsValid() {
		return callMember(n, m)
	}
	if f := p.field(n); f.IsValid() {
		return f.Interface(), true, nil
	}
	return nil, false, nil
}

func (p *SafeProxy) method(goName string) reflect.Value {
	if m := p.obj.MethodByName(goName); m.IsValid() {
		return m
	}
	if p.obj.Kind() != reflect.Pointer && p.obj.CanAddr() {
		return p.obj.Addr().MethodByName(goName)
	}
	return reflect.Value{}
}

func (p *SafeProxy) field(goName string) reflect.Value {
	sv := p.obj
	for sv.Kind() == reflect.Pointer {
		if sv.IsNil() {
			return reflect.Value{}
		}
		sv = sv.Elem()
	}
	if sv.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	if f := sv.FieldByName(goName); f.IsValid() && f.CanInterface() {
		return f
	}
	return reflect.Value{}
}

// callMember invokes a zero-argument method. Methods of any other shape are
// not members. A returned error or a panic is reported as a render error.
func callMember(name string, m reflect.Value) (res any, found bool, err error) {
	if !memberSignature(m.Type(), 0) {
		return nil, false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			res, found = nil, true
			err = Errorf(ErrRender, "Member '%s' failed: %v", name, r)
		}
	}()
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		cause := out[1].Interface().(error)
		le := Errorf(ErrRender, "Member '%s' failed: %v", name, cause)
		le.Err = cause
		return nil, true, le
	}
	return out[0].Interface(), true, nil
}

// ConvertToValueType applies the registered conversion. Without one the
// proxy returns itself and prints as nothing.
func (p *SafeProxy) ConvertToValueType() any {
	if p.toValue != nil {
		return p.toValue(p.obj.Interface())
	}
	return p
}
