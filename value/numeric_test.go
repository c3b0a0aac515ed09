package value

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b NumKind
		want NumKind
	}{
		{NumInt32, NumInt32, NumInt32},
		{NumInt8, NumInt32, NumInt32},
		{NumUint8, NumUint64, NumUint64},
		{NumInt32, NumUint8, NumInt32},
		{NumInt32, NumUint32, NumInt64},
		{NumInt8, NumUint8, NumInt16},
		{NumInt64, NumUint64, NumDecimal},
		{NumFloat32, NumInt16, NumFloat32},
		{NumFloat32, NumInt32, NumFloat64},
		{NumFloat64, NumInt64, NumFloat64},
		{NumFloat32, NumFloat64, NumFloat64},
		{NumDecimal, NumFloat64, NumDecimal},
		{NumDecimal, NumInt8, NumDecimal},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Promote(tt.a, tt.b))
			assert.Equal(t, tt.want, Promote(tt.b, tt.a))
		})
	}
}

func TestArithKeepsPromotedType(t *testing.T) {
	r, err := Arith(OpAdd, int32(2), int8(3))
	require.NoError(t, err)
	assert.Equal(t, int32(5), r)

	r, err = Arith(OpMul, uint8(3), int8(4))
	require.NoError(t, err)
	assert.Equal(t, int16(12), r)

	r, err = Arith(OpAdd, int64(1), uint64(2))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(r.(decimal.Decimal)))

	r, err = Arith(OpDiv, float32(1), int8(4))
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), r)
}

func TestArithIntegerDivisionTruncates(t *testing.T) {
	r, err := Arith(OpDiv, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r)

	r, err = Arith(OpMod, -7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), r)
}

func TestArithOverflowFallsBackToFloat(t *testing.T) {
	r, err := Arith(OpAdd, int32(math.MaxInt32), int32(1))
	require.NoError(t, err)
	assert.Equal(t, float64(math.MaxInt32)+1, r)

	r, err = Arith(OpMul, int64(math.MaxInt64), int64(2))
	require.NoError(t, err)
	assert.IsType(t, float64(0), r)

	r, err = Arith(OpSub, uint8(1), uint8(2))
	require.NoError(t, err)
	assert.Equal(t, float64(-1), r)

	r, err = Arith(OpDiv, int64(math.MinInt64), int64(-1))
	require.NoError(t, err)
	assert.IsType(t, float64(0), r)
}

func TestArithDivisionByZero(t *testing.T) {
	_, err := Arith(OpDiv, 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Arith(OpMod, uint32(1), uint32(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Arith(OpDiv, decimal.NewFromInt(1), 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	r, err := Arith(OpDiv, 1.0, 0)
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.(float64), 1))

	r, err = Arith(OpMod, 1.0, 0.0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.(float64)))
}

func TestArithRejectsNonNumbers(t *testing.T) {
	_, err := Arith(OpAdd, "1", 2)
	assert.Error(t, err)
}

func TestCompareNumbersAcrossKinds(t *testing.T) {
	c, ok := CompareNumbers(int8(-1), uint64(math.MaxUint64))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = CompareNumbers(1, 1.0)
	require.True(t, ok)
	assert.Equal(t, 0, c)

	_, ok = CompareNumbers(math.NaN(), 1.0)
	assert.False(t, ok)
}

func TestToInt64(t *testing.T) {
	i, ok := ToInt64(uint64(math.MaxUint64))
	assert.False(t, ok)
	assert.Zero(t, i)

	i, ok = ToInt64(3.9)
	assert.True(t, ok)
	assert.Equal(t, int64(3), i)

	_, ok = ToInt64("3")
	assert.False(t, ok)
}
