// Package pricing derives monetary amounts for sales and renewals.
// All arithmetic is decimal to keep currency values exact.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/nwhitfield/minicrm-system/internal/model"
)

// ComputeTotal returns unitPrice multiplied by quantity.
func ComputeTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ComputeRenewal returns the amount charged on each renewal of a
// recurring product. The second return value is false when the product
// does not recur or carries no renewal price.
func ComputeRenewal(mode model.RecurringMode, renewalPrice *decimal.Decimal) (decimal.Decimal, bool) {
	if mode == model.RecurringNone || renewalPrice == nil {
		return decimal.Decimal{}, false
	}
	return *renewalPrice, true
}
