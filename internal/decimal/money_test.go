package decimal_test

import (
	"strings"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/decimal"
)

func TestFromString(t *testing.T) {
	d, err := decimal.FromString(" 123456.78 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("123456.78")))

	_, err = decimal.FromString("not-a-number")
	require.Error(t, err)
	assert.NotErrorIs(t, err, decimal.ErrOutOfRange)
}

func TestFromString_OutOfRange(t *testing.T) {
	tests := []string{
		"1e50000000",
		"1e-50000000",
		"1e19",
		"0.0000000000000000001",
		"1" + strings.Repeat("0", 40),
	}

	for _, in := range tests {
		t.Run(in[:min(len(in), 12)], func(t *testing.T) {
			_, err := decimal.FromString(in)
			assert.ErrorIs(t, err, decimal.ErrOutOfRange)
		})
	}
}

func TestInRange(t *testing.T) {
	assert.True(t, decimal.InRange(dec.RequireFromString("5000.00")))
	assert.True(t, decimal.InRange(dec.RequireFromString("1e18")))
	assert.True(t, decimal.InRange(dec.RequireFromString("0.000000000000000001")))
	assert.False(t, decimal.InRange(dec.RequireFromString("1e50000000")))
}

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"5000", "5000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := decimal.Round(dec.RequireFromString(tt.in))
			assert.Equal(t, tt.want, decimal.Format(got))
		})
	}
}

func TestMul(t *testing.T) {
	a := dec.NewFromInt(5000)
	b := dec.RequireFromString("0.15")
	assert.Equal(t, "750.00", decimal.Format(decimal.Mul(a, b)))

	// 3 x 33.335 = 100.005 -> 100.01
	assert.Equal(t, "100.01", decimal.Format(decimal.Mul(dec.NewFromInt(3), dec.RequireFromString("33.335"))))
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.RequireFromString("0.10"),
		dec.RequireFromString("0.20"),
		dec.RequireFromString("0.30"),
	}
	// exact decimal arithmetic, no binary float drift
	assert.Equal(t, "0.60", decimal.Format(decimal.Sum(values)))
}

func TestSum_Empty(t *testing.T) {
	result := decimal.Sum([]dec.Decimal{})
	assert.True(t, result.IsZero())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "15.00", decimal.Percent(dec.RequireFromString("0.15")))
	assert.Equal(t, "0.00", decimal.Percent(dec.Zero))
}

func TestWithinTolerance(t *testing.T) {
	base := dec.RequireFromString("5750.00")
	assert.True(t, decimal.WithinTolerance(base, dec.RequireFromString("5750.01")))
	assert.True(t, decimal.WithinTolerance(base, dec.RequireFromString("5749.99")))
	assert.False(t, decimal.WithinTolerance(base, dec.RequireFromString("5750.02")))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, decimal.IsPositive(dec.NewFromInt(1)))
	assert.False(t, decimal.IsPositive(dec.Zero))
	assert.False(t, decimal.IsPositive(dec.NewFromInt(-1)))
}

func TestIsNonNegative(t *testing.T) {
	assert.True(t, decimal.IsNonNegative(dec.NewFromInt(1)))
	assert.True(t, decimal.IsNonNegative(dec.Zero))
	assert.False(t, decimal.IsNonNegative(dec.NewFromInt(-1)))
}
