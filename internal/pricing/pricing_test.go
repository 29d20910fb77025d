package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nwhitfield/minicrm-system/internal/model"
)

func TestComputeTotalExact(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		quantity int
		want     string
	}{
		{
			name:     "no float drift",
			price:    "19.99",
			quantity: 3,
			want:     "59.97",
		},
		{
			name:     "single unit",
			price:    "250.00",
			quantity: 1,
			want:     "250.00",
		},
		{
			name:     "free product",
			price:    "0",
			quantity: 10,
			want:     "0",
		},
		{
			name:     "penny price large quantity",
			price:    "0.01",
			quantity: 1000,
			want:     "10.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := decimal.NewFromString(tt.price)
			if err != nil {
				t.Fatalf("parse price: %v", err)
			}
			want, err := decimal.NewFromString(tt.want)
			if err != nil {
				t.Fatalf("parse want: %v", err)
			}

			got := ComputeTotal(price, tt.quantity)
			if !got.Equal(want) {
				t.Fatalf("ComputeTotal(%s, %d) = %s, want %s", tt.price, tt.quantity, got, want)
			}
		})
	}
}

func TestComputeRenewal(t *testing.T) {
	renewal := decimal.NewFromFloat(8.99)

	got, ok := ComputeRenewal(model.RecurringMonthly, &renewal)
	if !ok {
		t.Fatalf("expected renewal amount for monthly recurring")
	}
	if !got.Equal(renewal) {
		t.Fatalf("ComputeRenewal = %s, want %s", got, renewal)
	}

	if _, ok := ComputeRenewal(model.RecurringNone, &renewal); ok {
		t.Fatalf("expected no renewal amount for non-recurring mode")
	}

	if _, ok := ComputeRenewal(model.RecurringAnnual, nil); ok {
		t.Fatalf("expected no renewal amount without renewal price")
	}
}
