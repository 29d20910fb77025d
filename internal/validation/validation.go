// Package validation contains input validation for the mini-CRM entities.
package validation

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/nwhitfield/minicrm-system/internal/model"
)

var (
	postcodePattern = regexp.MustCompile(`(?i)^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)
	phonePattern    = regexp.MustCompile(`^(\+44|0)\d{10}$`)
	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// FieldErrors maps a field name to a human-readable validation message.
// It is returned as the error value for any field-level contract violation.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(e[f])
	}
	return b.String()
}

// IsValidPostcode reports whether s is a UK postcode. The field is
// optional, so the empty string is valid.
func IsValidPostcode(s string) bool {
	if s == "" {
		return true
	}
	return postcodePattern.MatchString(s)
}

// IsValidPhone reports whether s is a UK phone number, ignoring any
// whitespace. The field is optional, so the empty string is valid.
func IsValidPhone(s string) bool {
	if s == "" {
		return true
	}
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return phonePattern.MatchString(stripped)
}

// IsValidEmail reports whether s looks like an email address. The field
// is required, so the empty string is invalid.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPrice reports whether d is a valid monetary amount.
func IsValidPrice(d decimal.Decimal) bool {
	return !d.IsNegative()
}

// IsValidQuantity reports whether q is a valid sale quantity.
func IsValidQuantity(q int) bool {
	return q >= 1
}

// CheckCustomer validates customer fields and returns nil when all pass.
func CheckCustomer(c model.Customer) error {
	errs := FieldErrors{}

	if strings.TrimSpace(c.Name) == "" {
		errs["name"] = "name is required"
	}
	if c.Email == "" {
		errs["email"] = "email is required"
	} else if !IsValidEmail(c.Email) {
		errs["email"] = "invalid email address"
	}
	if !IsValidPhone(c.Phone) {
		errs["phone"] = "invalid UK phone number"
	}
	if !IsValidPostcode(c.Postcode) {
		errs["postcode"] = "invalid UK postcode"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CheckProduct validates catalogue fields, including the invariant that a
// renewal price is present exactly when the product recurs.
func CheckProduct(p model.Product) error {
	errs := FieldErrors{}

	if strings.TrimSpace(p.Name) == "" {
		errs["name"] = "name is required"
	}
	if !IsValidPrice(p.Price) {
		errs["price"] = "price must be a non-negative number"
	}

	switch p.Type {
	case model.ProductTypeProduct, model.ProductTypeService:
	default:
		errs["type"] = "type must be Product or Service"
	}

	switch p.Recurring {
	case model.RecurringNone:
	case model.RecurringMonthly, model.RecurringAnnual:
		if p.RenewalPrice == nil {
			errs["renewalPrice"] = "renewal price is required for recurring billing"
		} else if !IsValidPrice(*p.RenewalPrice) {
			errs["renewalPrice"] = "renewal price must be a non-negative number"
		}
	default:
		errs["recurring"] = "recurring must be None, Monthly or Annual"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
