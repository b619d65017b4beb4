package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	JPY Currency = "JPY" // Japanese Yen
	CNY Currency = "CNY" // Chinese Yuan
	HKD Currency = "HKD" // Hong Kong Dollar
	CHF Currency = "CHF" // Swiss Franc
	CAD Currency = "CAD" // Canadian Dollar
	AUD Currency = "AUD" // Australian Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = USD

var supportedCurrencies = map[Currency]struct{}{
	USD: {}, EUR: {}, GBP: {}, JPY: {}, CNY: {}, HKD: {}, CHF: {}, CAD: {}, AUD: {},
}

// SupportedCurrencies lists the currencies the ledger accepts.
func SupportedCurrencies() []Currency {
	return []Currency{USD, EUR, GBP, JPY, CNY, HKD, CHF, CAD, AUD}
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.IsSupported() {
		return "", shared.NewValidationError("unsupported currency %q", code)
	}
	return c, nil
}

// IsSupported reports whether the currency is accepted by the ledger.
func (c Currency) IsSupported() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// Scale returns the number of minor-unit digits (2 for USD, 0 for JPY).
func (c Currency) Scale() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// String returns the ISO code
func (c Currency) String() string {
	return string(c)
}

// Money is a value object representing monetary amounts.
// It is immutable - all operations return new Money instances, and no
// rounding happens until Round or Display is called.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, shared.NewValidationError("currency cannot be empty")
	}
	if !currency.IsSupported() {
		return Money{}, shared.NewValidationError("unsupported currency %q", string(currency))
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// MustNewMoney is NewMoney for literals known to be valid; it panics otherwise.
func MustNewMoney(amount string, currency Currency) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromInt creates Money from an int64 value in major units
func NewMoneyFromInt(amount int64, currency Currency) (Money, error) {
	return NewMoney(decimal.NewFromInt(amount), currency)
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, shared.NewValidationError("invalid amount %q", amount)
	}
	return NewMoney(d, currency)
}

// RestoreMoney rebuilds a persisted value. The currency was validated when
// the value was first created, so it is not checked again.
func RestoreMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return shared.NewCurrencyMismatchError(string(m.currency), string(other.currency))
	}
	return nil
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: m.currency,
	}, nil
}

// Multiply returns a new Money multiplied by the given factor
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(factor),
		currency: m.currency,
	}
}

// PercentageOf returns rate percent of the amount (rate 7.5 means 7.5%)
func (m Money) PercentageOf(rate decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(rate).Div(decimal.NewFromInt(100)),
		currency: m.currency,
	}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{
		amount:   m.amount.Neg(),
		currency: m.currency,
	}
}

// Compare returns -1, 0 or 1 as m is less than, equal to or greater than other
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	c, err := m.Compare(other)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// Max returns the larger of the two values
func (m Money) Max(other Money) (Money, error) {
	c, err := m.Compare(other)
	if err != nil {
		return Money{}, err
	}
	if c >= 0 {
		return m, nil
	}
	return other, nil
}

// Round returns a new Money rounded half-up to the currency's minor unit
func (m Money) Round() Money {
	return Money{
		amount:   m.amount.Round(m.currency.Scale()),
		currency: m.currency,
	}
}

// IsMinorUnit reports whether the amount has no digits below the currency's
// minor unit, e.g. 10.25 USD but not 10.255 USD
func (m Money) IsMinorUnit() bool {
	return m.amount.Equal(m.amount.Round(m.currency.Scale()))
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Display formats the rounded amount for humans, e.g. "USD 1,234.50".
func (m Money) Display() string {
	scale := m.currency.Scale()
	fixed := m.amount.Round(scale).StringFixed(scale)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, hasFrac := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return fmt.Sprintf("%s %s%s", m.currency, sign, b.String())
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.String(), m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler and validates the currency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
