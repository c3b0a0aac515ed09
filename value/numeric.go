package value

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"reflect"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned when an integer or decimal is divided by zero.
// Floating point division by zero follows IEEE 754 instead.
var ErrDivisionByZero = errors.New("divided by 0")

// NumKind identifies the concrete representation of a number. Go's int and
// uint are treated as their 64-bit counterparts.
type NumKind int

const (
	NumInt8 NumKind = iota
	NumInt16
	NumInt32
	NumInt64
	NumUint8
	NumUint16
	NumUint32
	NumUint64
	NumFloat32
	NumFloat64
	NumDecimal
)

var numKindNames = [...]string{
	"int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64", "decimal",
}

func (k NumKind) String() string {
	if int(k) < len(numKindNames) {
		return numKindNames[k]
	}
	return fmt.Sprintf("NumKind(%d)", int(k))
}

func (k NumKind) signed() bool   { return k >= NumInt8 && k <= NumInt64 }
func (k NumKind) unsigned() bool { return k >= NumUint8 && k <= NumUint64 }
func (k NumKind) float() bool    { return k == NumFloat32 || k == NumFloat64 }

func (k NumKind) bits() int {
	switch k {
	case NumInt8, NumUint8:
		return 8
	case NumInt16, NumUint16:
		return 16
	case NumInt32, NumUint32, NumFloat32:
		return 32
	default:
		return 64
	}
}

func signedOfBits(n int) NumKind {
	switch {
	case n <= 8:
		return NumInt8
	case n <= 16:
		return NumInt16
	case n <= 32:
		return NumInt32
	default:
		return NumInt64
	}
}

// NumberKindOf returns the numeric kind of v. Named integer types with a
// String method are enumerations, not numbers.
func NumberKindOf(v any) (NumKind, bool) {
	switch v.(type) {
	case int8:
		return NumInt8, true
	case int16:
		return NumInt16, true
	case int32:
		return NumInt32, true
	case int64, int:
		return NumInt64, true
	case uint8:
		return NumUint8, true
	case uint16:
		return NumUint16, true
	case uint32:
		return NumUint32, true
	case uint64, uint:
		return NumUint64, true
	case float32:
		return NumFloat32, true
	case float64:
		return NumFloat64, true
	case decimal.Decimal, *big.Int, big.Int:
		return NumDecimal, true
	case nil:
		return 0, false
	}
	if IsEnum(v) {
		return 0, false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int8:
		return NumInt8, true
	case reflect.Int16:
		return NumInt16, true
	case reflect.Int32:
		return NumInt32, true
	case reflect.Int, reflect.Int64:
		return NumInt64, true
	case reflect.Uint8:
		return NumUint8, true
	case reflect.Uint16:
		return NumUint16, true
	case reflect.Uint32:
		return NumUint32, true
	case reflect.Uint, reflect.Uint64:
		return NumUint64, true
	case reflect.Float32:
		return NumFloat32, true
	case reflect.Float64:
		return NumFloat64, true
	}
	return 0, false
}

// IsNumber reports whether v is any numeric value.
func IsNumber(v any) bool {
	_, ok := NumberKindOf(v)
	return ok
}

// Promote returns the kind two operands are converted to before an
// arithmetic operation or comparison.
//
// Mixing a signed and an unsigned integer picks the signed type when it is
// strictly wider, otherwise the next wider signed type; uint64 mixed with any
// signed integer has no such type and goes to decimal.
func Promote(a, b NumKind) NumKind {
	if a == b {
		return a
	}
	if a == NumDecimal || b == NumDecimal {
		return NumDecimal
	}
	if a.float() && b.float() {
		return NumFloat64
	}
	if a.float() || b.float() {
		f, i := a, b
		if b.float() {
			f, i = b, a
		}
		if f == NumFloat32 && i.bits() <= 16 {
			return NumFloat32
		}
		return NumFloat64
	}
	if a.signed() == b.signed() {
		if a.bits() >= b.bits() {
			return a
		}
		return b
	}
	s, u := a, b
	if b.signed() {
		s, u = b, a
	}
	if s.bits() > u.bits() {
		return s
	}
	if u.bits() == 64 {
		return NumDecimal
	}
	return signedOfBits(u.bits() * 2)
}

// ToInt64 converts a numeric value to int64, truncating fractions. The
// second result is false for non-numbers and values out of range.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case decimal.Decimal:
		if n.LessThan(minInt64Dec) || n.GreaterThan(maxInt64Dec) {
			return 0, false
		}
		return n.IntPart(), true
	}
	k, ok := NumberKindOf(v)
	if !ok {
		return 0, false
	}
	switch {
	case k.signed():
		return reflect.ValueOf(v).Int(), true
	case k.unsigned():
		u := reflect.ValueOf(v).Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case k.float():
		f := reflect.ValueOf(v).Float()
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	default:
		d := toDecimal(v)
		if d.LessThan(minInt64Dec) || d.GreaterThan(maxInt64Dec) {
			return 0, false
		}
		return d.IntPart(), true
	}
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case decimal.Decimal:
		return n.InexactFloat64(), true
	}
	k, ok := NumberKindOf(v)
	if !ok {
		return 0, false
	}
	switch {
	case k.signed():
		return float64(reflect.ValueOf(v).Int()), true
	case k.unsigned():
		return float64(reflect.ValueOf(v).Uint()), true
	case k.float():
		return reflect.ValueOf(v).Float(), true
	default:
		return toDecimal(v).InexactFloat64(), true
	}
}

// ToDecimal converts a numeric value to decimal.Decimal.
func ToDecimal(v any) (decimal.Decimal, bool) {
	if !IsNumber(v) {
		return decimal.Zero, false
	}
	return toDecimal(v), true
}

var (
	minInt64Dec = decimal.NewFromInt(math.MinInt64)
	maxInt64Dec = decimal.NewFromInt(math.MaxInt64)
)

func toDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case *big.Int:
		return decimal.NewFromBigInt(n, 0)
	case big.Int:
		return decimal.NewFromBigInt(&n, 0)
	case float32:
		return decimal.NewFromFloat32(n)
	case float64:
		return decimal.NewFromFloat(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0)
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float())
	}
	return decimal.Zero
}

// Op is an arithmetic operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return "?"
}

// Arith applies op to two numbers after promoting them to a common kind.
//
// Integer results keep the promoted integer type. When an integer result does
// not fit that type the operation is redone in float64. Division and modulo
// by zero return ErrDivisionByZero for integers and decimals.
func Arith(op Op, a, b any) (any, error) {
	ka, ok := NumberKindOf(a)
	if !ok {
		return nil, fmt.Errorf("%v is not a number", a)
	}
	kb, ok := NumberKindOf(b)
	if !ok {
		return nil, fmt.Errorf("%v is not a number", b)
	}
	k := Promote(ka, kb)
	switch {
	case k == NumDecimal:
		return decimalArith(op, toDecimal(a), toDecimal(b))
	case k == NumFloat64:
		x, _ := ToFloat64(a)
		y, _ := ToFloat64(b)
		return floatArith(op, x, y), nil
	case k == NumFloat32:
		x, _ := ToFloat64(a)
		y, _ := ToFloat64(b)
		return float32(floatArith(op, float64(float32(x)), float64(float32(y)))), nil
	case k.signed():
		x := reflect.ValueOf(a).Convert(reflect.TypeOf(int64(0))).Int()
		y := reflect.ValueOf(b).Convert(reflect.TypeOf(int64(0))).Int()
		r, overflow, err := signedArith(op, x, y, k)
		if err != nil {
			return nil, err
		}
		if overflow {
			return floatArith(op, float64(x), float64(y)), nil
		}
		return castSigned(r, k), nil
	default:
		x := reflect.ValueOf(a).Convert(reflect.TypeOf(uint64(0))).Uint()
		y := reflect.ValueOf(b).Convert(reflect.TypeOf(uint64(0))).Uint()
		r, overflow, err := unsignedArith(op, x, y, k)
		if err != nil {
			return nil, err
		}
		if overflow {
			return floatArith(op, float64(x), float64(y)), nil
		}
		return castUnsigned(r, k), nil
	}
}

func decimalArith(op Op, x, y decimal.Decimal) (any, error) {
	switch op {
	case OpAdd:
		return x.Add(y), nil
	case OpSub:
		return x.Sub(y), nil
	case OpMul:
		return x.Mul(y), nil
	case OpDiv:
		if y.IsZero() {
			return nil, ErrDivisionByZero
		}
		return x.Div(y), nil
	default:
		if y.IsZero() {
			return nil, ErrDivisionByZero
		}
		return x.Mod(y), nil
	}
}

func floatArith(op Op, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	default:
		return math.Mod(x, y)
	}
}

func signedRange(k NumKind) (int64, int64) {
	switch k {
	case NumInt8:
		return math.MinInt8, math.MaxInt8
	case NumInt16:
		return math.MinInt16, math.MaxInt16
	case NumInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

func unsignedMax(k NumKind) uint64 {
	switch k {
	case NumUint8:
		return math.MaxUint8
	case NumUint16:
		return math.MaxUint16
	case NumUint32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// signedArith reports overflow against the width of k rather than int64.
// Operands narrower than 64 bits cannot overflow int64 itself.
func signedArith(op Op, x, y int64, k NumKind) (int64, bool, error) {
	lo, hi := signedRange(k)
	var r int64
	switch op {
	case OpAdd:
		if k == NumInt64 && ((y > 0 && x > hi-y) || (y < 0 && x < lo-y)) {
			return 0, true, nil
		}
		r = x + y
	case OpSub:
		if k == NumInt64 && ((y < 0 && x > hi+y) || (y > 0 && x < lo+y)) {
			return 0, true, nil
		}
		r = x - y
	case OpMul:
		if k == NumInt64 {
			if x != 0 && y != 0 {
				p := x * y
				if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
					return 0, true, nil
				}
			}
		}
		r = x * y
	case OpDiv:
		if y == 0 {
			return 0, false, ErrDivisionByZero
		}
		if x == lo && y == -1 {
			return 0, true, nil
		}
		r = x / y
	default:
		if y == 0 {
			return 0, false, ErrDivisionByZero
		}
		if y == -1 {
			return 0, false, nil
		}
		r = x % y
	}
	if r < lo || r > hi {
		return 0, true, nil
	}
	return r, false, nil
}

func unsignedArith(op Op, x, y uint64, k NumKind) (uint64, bool, error) {
	hi := unsignedMax(k)
	var r uint64
	switch op {
	case OpAdd:
		sum, carry := bits.Add64(x, y, 0)
		if carry != 0 {
			return 0, true, nil
		}
		r = sum
	case OpSub:
		if y > x {
			return 0, true, nil
		}
		r = x - y
	case OpMul:
		h, l := bits.Mul64(x, y)
		if h != 0 {
			return 0, true, nil
		}
		r = l
	case OpDiv:
		if y == 0 {
			return 0, false, ErrDivisionByZero
		}
		r = x / y
	default:
		if y == 0 {
			return 0, false, ErrDivisionByZero
		}
		r = x % y
	}
	if r > hi {
		return 0, true, nil
	}
	return r, false, nil
}

func castSigned(r int64, k NumKind) any {
	switch k {
	case NumInt8:
		return int8(r)
	case NumInt16:
		return int16(r)
	case NumInt32:
		return int32(r)
	default:
		return r
	}
}

func castUnsigned(r uint64, k NumKind) any {
	switch k {
	case NumUint8:
		return uint8(r)
	case NumUint16:
		return uint16(r)
	case NumUint32:
		return uint32(r)
	default:
		return r
	}
}

// CompareNumbers orders two numbers after promotion.
func CompareNumbers(a, b any) (int, bool) {
	ka, ok := NumberKindOf(a)
	if !ok {
		return 0, false
	}
	kb, ok := NumberKindOf(b)
	if !ok {
		return 0, false
	}
	k := Promote(ka, kb)
	switch {
	case k == NumDecimal:
		return toDecimal(a).Cmp(toDecimal(b)), true
	case k.float():
		x, _ := ToFloat64(a)
		y, _ := ToFloat64(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		case x == y:
			return 0, true
		}
		return 0, false
	case k.signed():
		x, _ := ToInt64(a)
		y, _ := ToInt64(b)
		return cmpOrdered(x, y), true
	default:
		x := reflect.ValueOf(a).Convert(reflect.TypeOf(uint64(0))).Uint()
		y := reflect.ValueOf(b).Convert(reflect.TypeOf(uint64(0))).Uint()
		return cmpOrdered(x, y), true
	}
}

func cmpOrdered[T int64 | uint64 | string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
