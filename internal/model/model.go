// Package model contains the domain entities of the mini-CRM service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Customer represents a business contact with UK address details.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Address   string
	Postcode  string
	CreatedAt time.Time
}

// ProductType distinguishes goods from services in the catalogue.
type ProductType string

const (
	ProductTypeProduct ProductType = "Product"
	ProductTypeService ProductType = "Service"
)

// RecurringMode describes the renewal cadence of a catalogue entry.
type RecurringMode string

const (
	RecurringNone    RecurringMode = "None"
	RecurringMonthly RecurringMode = "Monthly"
	RecurringAnnual  RecurringMode = "Annual"
)

// Product describes a catalogue entry with a one-time price and an
// optional recurring renewal price. RenewalPrice is set exactly when
// Recurring is not RecurringNone.
type Product struct {
	ID           int64
	Name         string
	Description  string
	Price        decimal.Decimal
	Type         ProductType
	Recurring    RecurringMode
	RenewalPrice *decimal.Decimal
}

// Sale links one customer to one product. TotalAmount is always derived
// server-side from the product price and quantity; SaleDate is the UTC
// midnight of the calendar day the sale happened.
type Sale struct {
	ID           int64
	CustomerID   int64
	CustomerName string
	ProductID    int64
	ProductName  string
	Quantity     int
	SaleDate     time.Time
	TotalAmount  decimal.Decimal
}
