package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

const moneyPlaces = 2

// Calculate sums the item prices and applies the tax rate.
// Both the tax amount and the total are rounded half away from zero to cents.
func Calculate(items []entity.LineItem, rate decimal.Decimal) entity.Totals {
	subtotal := decimal.Zero

	for _, item := range items {
		subtotal = subtotal.Add(item.Price)
	}

	tax := subtotal.Mul(rate).Round(moneyPlaces)

	return entity.Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax).Round(moneyPlaces),
	}
}

// FixedTaxRate is a TaxRateSource returning the same rate for every request.
type FixedTaxRate decimal.Decimal

func (r FixedTaxRate) TaxRate(context.Context) (decimal.Decimal, error) {
	rate := decimal.Decimal(r)
	if rate.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: negative tax rate %s", entity.ErrConfiguration, rate)
	}

	return rate, nil
}
