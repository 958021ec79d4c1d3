package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbujok/budgetbook/pkg/money"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "12.50", want: "12.50"},
		{input: "12.5", want: "12.50"},
		{input: "-3", want: "-3.00"},
		{input: "0", want: "0.00"},
		{input: "1.500", want: "1.50"}, // trailing zeros beyond scale 2 are fine
		{input: "1.505", wantErr: true},
		{input: "0.001", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := money.Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, money.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "0.01", money.FromCents(1).String())
	assert.Equal(t, "-10.00", money.FromCents(-1000).String())
	assert.Equal(t, int64(6500), money.FromCents(6500).Cents())
}

func TestArithmeticKeepsScale(t *testing.T) {
	a := money.MustParse("0.10")
	b := money.MustParse("0.20")

	sum := a.Add(b)
	assert.Equal(t, "0.30", sum.String())

	diff := sum.Sub(money.MustParse("0.30"))
	assert.True(t, diff.IsZero())
	assert.Equal(t, "0.00", diff.String())

	neg := money.MustParse("50.00").Neg()
	assert.Equal(t, "-50.00", neg.String())
	assert.True(t, neg.IsNegative())
	assert.Equal(t, "50.00", neg.Abs().String())
}

func TestApplyAndReverseRoundTrip(t *testing.T) {
	balance := money.MustParse("1000.00")
	delta := money.MustParse("60.00")

	after := balance.Add(delta.Neg())
	assert.Equal(t, "940.00", after.String())

	restored := after.Add(delta)
	assert.True(t, restored.Equal(balance))
}

func TestJSONRoundTrip(t *testing.T) {
	a := money.MustParse("65.00")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"65.00"`, string(data))

	var back money.Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(a))

	var fromNumber money.Amount
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &fromNumber))
	assert.Equal(t, "12.50", fromNumber.String())

	var bad money.Amount
	assert.Error(t, json.Unmarshal([]byte(`"1.234"`), &bad))
}

func TestSum(t *testing.T) {
	total := money.Sum(
		money.MustParse("20.00"),
		money.MustParse("30.00"),
		money.MustParse("15.00"),
	)
	assert.Equal(t, "65.00", total.String())
	assert.True(t, money.Sum().IsZero())
}
