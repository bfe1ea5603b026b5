package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/internal/service"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name         string
		prices       []string
		rate         string
		wantSubtotal string
		wantTax      string
		wantTotal    string
	}{
		{
			name:         "two items",
			prices:       []string{"100", "50"},
			rate:         "0.21",
			wantSubtotal: "150",
			wantTax:      "31.50",
			wantTotal:    "181.50",
		},
		{
			name:         "half cent rounds up",
			prices:       []string{"0.50"},
			rate:         "0.21",
			wantSubtotal: "0.50",
			wantTax:      "0.11",
			wantTotal:    "0.61",
		},
		{
			name:         "below half cent rounds down",
			prices:       []string{"10.10"},
			rate:         "0.21",
			wantSubtotal: "10.10",
			wantTax:      "2.12",
			wantTotal:    "12.22",
		},
		{
			name:         "no float drift",
			prices:       []string{"0.10", "0.20"},
			rate:         "0.21",
			wantSubtotal: "0.30",
			wantTax:      "0.06",
			wantTotal:    "0.36",
		},
		{
			name:         "zero rate",
			prices:       []string{"19.99", "0.01"},
			rate:         "0",
			wantSubtotal: "20",
			wantTax:      "0",
			wantTotal:    "20",
		},
		{
			name:         "free items",
			prices:       []string{"0", "0"},
			rate:         "0.21",
			wantSubtotal: "0",
			wantTax:      "0",
			wantTotal:    "0",
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items := make([]entity.LineItem, 0, len(tt.prices))
			for _, p := range tt.prices {
				items = append(items, entity.LineItem{Description: "-", Price: decimal.RequireFromString(p)})
			}

			got := service.Calculate(items, decimal.RequireFromString(tt.rate))
			require.True(t, decimal.RequireFromString(tt.wantSubtotal).Equal(got.Subtotal), got.Subtotal.String())
			require.True(t, decimal.RequireFromString(tt.wantTax).Equal(got.TaxAmount), got.TaxAmount.String())
			require.True(t, decimal.RequireFromString(tt.wantTotal).Equal(got.Total), got.Total.String())
		})
	}
}

func TestCalculate_TotalNotBelowSubtotal(t *testing.T) {
	t.Parallel()

	rates := []string{"0", "0.04", "0.10", "0.21", "1"}

	for cents := int64(0); cents < 2000; cents += 7 {
		items := []entity.LineItem{
			{Price: decimal.New(cents, -2)},
			{Price: decimal.New(cents/3, -2)},
		}

		for _, r := range rates {
			rate := decimal.RequireFromString(r)
			got := service.Calculate(items, rate)

			require.True(t, got.Total.GreaterThanOrEqual(got.Subtotal))
			require.True(t, got.TaxAmount.Equal(got.Subtotal.Mul(rate).Round(2)))
			require.True(t, got.Total.Equal(got.Subtotal.Add(got.TaxAmount).Round(2)))
		}
	}
}

func TestFixedTaxRate(t *testing.T) {
	t.Parallel()

	rate, err := service.FixedTaxRate(decimal.RequireFromString("0.21")).TaxRate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.21", rate.String())

	_, err = service.FixedTaxRate(decimal.RequireFromString("-0.01")).TaxRate(context.Background())
	require.ErrorIs(t, err, entity.ErrConfiguration)
}
