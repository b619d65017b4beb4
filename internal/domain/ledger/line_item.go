package ledger

import (
	"strings"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var maxTaxRate = decimal.NewFromInt(100)

// StoredScale is the number of decimal places kept for quantities, unit
// prices and tax rates. Finer input would be rounded silently on write.
const StoredScale int32 = 4

func finerThan(d decimal.Decimal, scale int32) bool {
	return !d.Equal(d.Round(scale))
}

// LineItemInput carries the caller-supplied fields of a line item
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	TaxRate     decimal.Decimal // percent, 0 when untaxed
	Discount    *valueobject.Money
}

// LineItem is owned by exactly one Invoice. Amounts are kept at full
// precision; the invoice rounds only the aggregated totals.
type LineItem struct {
	ID          uuid.UUID
	LineNumber  int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	TaxRate     decimal.Decimal
	Discount    valueobject.Money
}

// NewLineItem validates input against the invoice currency
func NewLineItem(lineNumber int, in LineItemInput, currency valueobject.Currency) (LineItem, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return LineItem{}, shared.NewValidationError("line %d: description is required", lineNumber)
	}
	if !in.Quantity.IsPositive() {
		return LineItem{}, shared.NewValidationError("line %d: quantity must be positive", lineNumber).
			WithDetail("field", "quantity")
	}
	if finerThan(in.Quantity, StoredScale) {
		return LineItem{}, shared.NewValidationError("line %d: quantity allows at most %d decimal places", lineNumber, StoredScale).
			WithDetail("field", "quantity")
	}
	if in.UnitPrice.Currency() != currency {
		return LineItem{}, shared.NewCurrencyMismatchError(currency.String(), in.UnitPrice.Currency().String())
	}
	if in.UnitPrice.IsNegative() {
		return LineItem{}, shared.NewValidationError("line %d: unit price cannot be negative", lineNumber).
			WithDetail("field", "unit_price")
	}
	if finerThan(in.UnitPrice.Amount(), StoredScale) {
		return LineItem{}, shared.NewValidationError("line %d: unit price allows at most %d decimal places", lineNumber, StoredScale).
			WithDetail("field", "unit_price")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(maxTaxRate) || finerThan(in.TaxRate, StoredScale) {
		return LineItem{}, shared.NewValidationError("line %d: tax rate must be between 0 and 100 with at most 4 decimal places", lineNumber).
			WithDetail("field", "tax_rate")
	}

	discount := valueobject.Zero(currency)
	if in.Discount != nil {
		if in.Discount.Currency() != currency {
			return LineItem{}, shared.NewCurrencyMismatchError(currency.String(), in.Discount.Currency().String())
		}
		if in.Discount.IsNegative() {
			return LineItem{}, shared.NewValidationError("line %d: discount cannot be negative", lineNumber).
				WithDetail("field", "discount")
		}
		if !in.Discount.IsMinorUnit() {
			return LineItem{}, shared.NewValidationError("line %d: discount is finer than the %s minor unit", lineNumber, currency.String()).
				WithDetail("field", "discount")
		}
		discount = *in.Discount
	}

	item := LineItem{
		ID:          uuid.New(),
		LineNumber:  lineNumber,
		Description: description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		TaxRate:     in.TaxRate,
		Discount:    discount,
	}
	if discount.Amount().GreaterThan(item.Gross().Amount()) {
		return LineItem{}, shared.NewValidationError("line %d: discount exceeds line amount", lineNumber).
			WithDetail("field", "discount")
	}
	return item, nil
}

// Gross is quantity × unit price
func (li LineItem) Gross() valueobject.Money {
	return li.UnitPrice.Multiply(li.Quantity)
}

// Tax is gross × tax rate
func (li LineItem) Tax() valueobject.Money {
	return li.Gross().PercentageOf(li.TaxRate)
}

// BaseAmount is gross minus discount; it feeds the invoice subtotal
func (li LineItem) BaseAmount() valueobject.Money {
	base, _ := li.Gross().Subtract(li.Discount)
	return base
}

// Total is gross + tax − discount
func (li LineItem) Total() valueobject.Money {
	total, _ := li.BaseAmount().Add(li.Tax())
	return total
}
