// Package receipt holds the built-in validation rules for extracted receipts.
package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationResult is the outcome of one rule applied to one field.
type ValidationResult struct {
	Passed        bool
	FieldPath     string
	ExpectedValue string
	ActualValue   string
	Message       string
}

func fmtd(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func itemPath(i int, field string) string {
	return fmt.Sprintf("items[%d].%s", i, field)
}
