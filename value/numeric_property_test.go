//go:build property

package value

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestArithProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("int32 addition is commutative", prop.ForAll(
		func(a, b int) bool {
			x, err1 := Arith(OpAdd, int32(a), int32(b))
			y, err2 := Arith(OpAdd, int32(b), int32(a))
			return err1 == nil && err2 == nil && Equal(x, y)
		},
		gen.IntRange(math.MinInt32, math.MaxInt32),
		gen.IntRange(math.MinInt32, math.MaxInt32),
	))

	properties.Property("int8 results stay in range or widen to float", prop.ForAll(
		func(a, b int) bool {
			r, err := Arith(OpMul, int8(a), int8(b))
			if err != nil {
				return false
			}
			switch v := r.(type) {
			case int8:
				return int(v) == a*b
			case float64:
				return a*b > math.MaxInt8 || a*b < math.MinInt8
			}
			return false
		},
		gen.IntRange(math.MinInt8, math.MaxInt8),
		gen.IntRange(math.MinInt8, math.MaxInt8),
	))

	properties.Property("mixed signedness addition matches exact sum", prop.ForAll(
		func(a, b int) bool {
			r, err := Arith(OpAdd, int16(a), uint16(b))
			if err != nil {
				return false
			}
			got, ok := ToInt64(r)
			return ok && got == int64(a+b)
		},
		gen.IntRange(math.MinInt16, math.MaxInt16),
		gen.IntRange(0, math.MaxUint16),
	))

	properties.Property("nonzero integer division never errors", prop.ForAll(
		func(a, b int) bool {
			if b == 0 {
				return true
			}
			_, err := Arith(OpDiv, int64(a), int64(b))
			return err == nil
		},
		gen.IntRange(-1000000, 1000000),
		gen.IntRange(-1000, 1000),
	))

	properties.Property("range windows never exceed limit", prop.ForAll(
		func(from, to, offset, limit int) bool {
			r := Range{From: int64(from), To: int64(to)}
			w := r.Window(offset, limit)
			return len(w) <= limit && len(w) <= r.Len()
		},
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
		gen.IntRange(0, 120),
		gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}
