package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("100.50"), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("100.5")))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("returns error for unsupported currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "XYZ")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", EUR)
		require.NoError(t, err)
		assert.Equal(t, "123.45", m.Amount().String())
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", EUR)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("BTC")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCurrency_Scale(t *testing.T) {
	assert.Equal(t, int32(2), USD.Scale())
	assert.Equal(t, int32(2), EUR.Scale())
	assert.Equal(t, int32(0), JPY.Scale())
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNewMoney("100.10", USD)
	b := MustNewMoney("0.25", USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "100.35", sum.Amount().String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, "99.85", diff.Amount().String())

	assert.Equal(t, "300.3", a.Multiply(decimal.NewFromInt(3)).Amount().String())
	assert.Equal(t, "7.5075", a.PercentageOf(decimal.RequireFromString("7.5")).Amount().String())
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	usd := MustNewMoney("10", USD)
	eur := MustNewMoney("10", EUR)

	_, err := usd.Add(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)

	_, err = usd.Subtract(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)

	_, err = usd.Compare(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)

	_, err = usd.Max(eur)
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
}

func TestMoney_Compare(t *testing.T) {
	small := MustNewMoney("1", USD)
	big := MustNewMoney("2", USD)

	c, err := small.Compare(big)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = big.Compare(small)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = small.Compare(MustNewMoney("1.00", USD))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	m, err := small.Max(big)
	require.NoError(t, err)
	assert.True(t, m.Equals(big))
}

func TestMoney_Round(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		cur    Currency
		want   string
	}{
		{"half up", "1.005", USD, "1.01"},
		{"below half", "1.004", USD, "1"},
		{"negative half", "-1.005", USD, "-1.01"},
		{"yen has no minor unit", "100.5", JPY, "101"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustNewMoney(tt.amount, tt.cur).Round()
			assert.Equal(t, tt.want, got.Amount().String())
		})
	}
}

func TestMoney_IsMinorUnit(t *testing.T) {
	assert.True(t, MustNewMoney("10.25", USD).IsMinorUnit())
	assert.True(t, MustNewMoney("10", USD).IsMinorUnit())
	assert.False(t, MustNewMoney("10.255", USD).IsMinorUnit())
	assert.False(t, MustNewMoney("0.0001", EUR).IsMinorUnit())
	assert.True(t, MustNewMoney("100", JPY).IsMinorUnit())
	assert.False(t, MustNewMoney("100.5", JPY).IsMinorUnit())
}

// Many small lines summed at full precision do not drift.
func TestMoney_NoIntermediateRounding(t *testing.T) {
	total := Zero(USD)
	line := MustNewMoney("0.1", USD).PercentageOf(decimal.RequireFromString("33.3333"))
	for range 1000 {
		var err error
		total, err = total.Add(line)
		require.NoError(t, err)
	}
	assert.Equal(t, "33.33", total.Round().Amount().StringFixed(2))
}

func TestMoney_Display(t *testing.T) {
	assert.Equal(t, "USD 1,234,567.50", MustNewMoney("1234567.5", USD).Display())
	assert.Equal(t, "USD -12.35", MustNewMoney("-12.345", USD).Display())
	assert.Equal(t, "JPY 1,000", MustNewMoney("999.6", JPY).Display())
	assert.Equal(t, "EUR 0.00", Zero(EUR).Display())
}

func TestMoney_JSON(t *testing.T) {
	original := MustNewMoney("42.125", GBP)
	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"42.125","currency":"GBP"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equals(decoded))

	err = json.Unmarshal([]byte(`{"amount":"1","currency":"XXX"}`), &decoded)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMoney_Immutability(t *testing.T) {
	a := MustNewMoney("10", USD)
	_, _ = a.Add(MustNewMoney("5", USD))
	_ = a.Multiply(decimal.NewFromInt(2))
	assert.Equal(t, "10", a.Amount().String())
}
