package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgerlens/internal/domain"
)

// logicalValidator checks logical constraints on the receipt data.
type logicalValidator struct {
	ruleKey  string
	ruleName string
	severity domain.ValidationSeverity
	validate func(*domain.ReceiptExtraction) []ValidationResult
}

func (v *logicalValidator) RuleKey() string                     { return v.ruleKey }
func (v *logicalValidator) RuleName() string                    { return v.ruleName }
func (v *logicalValidator) Severity() domain.ValidationSeverity { return v.severity }
func (v *logicalValidator) ReconciliationCritical() bool        { return false }

func (v *logicalValidator) Validate(_ context.Context, data *domain.ReceiptExtraction) []ValidationResult {
	return v.validate(data)
}

type namedAmount struct {
	path  string
	value decimal.Decimal
}

func receiptAmounts(d *domain.ReceiptExtraction) []namedAmount {
	var out []namedAmount
	if d.TotalAmount.Valid {
		out = append(out, namedAmount{"total_amount", d.TotalAmount.Decimal})
	}
	if d.SubtotalAmount.Valid {
		out = append(out, namedAmount{"subtotal_amount", d.SubtotalAmount.Decimal})
	}
	if d.TaxDetails != nil && d.TaxDetails.Amount.Valid {
		out = append(out, namedAmount{"tax_details.amount", d.TaxDetails.Amount.Decimal})
	}
	for i := range d.Items {
		out = append(out,
			namedAmount{itemPath(i, "unit_price"), d.Items[i].UnitPrice},
			namedAmount{itemPath(i, "total_price"), d.Items[i].TotalPrice},
		)
	}
	return out
}

// LogicalValidators returns all logical validators.
func LogicalValidators() []*logicalValidator {
	return []*logicalValidator{
		{
			ruleKey: "logic.non_negative_amounts", ruleName: "Logical: Non-Negative Amounts",
			severity: domain.ValidationSeverityError,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				var results []ValidationResult
				for _, a := range receiptAmounts(d) {
					passed := !a.value.IsNegative()
					msg := fmt.Sprintf("Logical: Non-Negative Amounts: %s is non-negative", a.path)
					if !passed {
						msg = fmt.Sprintf("Logical: Non-Negative Amounts: %s is negative (%s)", a.path, fmtd(a.value))
					}
					results = append(results, ValidationResult{
						Passed: passed, FieldPath: a.path,
						ExpectedValue: ">= 0", ActualValue: fmtd(a.value), Message: msg,
					})
				}
				return results
			},
		},
		{
			ruleKey: "logic.item_quantity_positive", ruleName: "Logical: Item Quantity Positive",
			severity: domain.ValidationSeverityError,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				results := make([]ValidationResult, 0, len(d.Items))
				for i := range d.Items {
					fp := itemPath(i, "quantity")
					q := d.Items[i].Quantity
					passed := q.IsPositive()
					msg := fmt.Sprintf("Logical: Item Quantity Positive: %s is positive", fp)
					if !passed {
						msg = fmt.Sprintf("Logical: Item Quantity Positive: %s must be greater than zero (%s)", fp, q.String())
					}
					results = append(results, ValidationResult{
						Passed: passed, FieldPath: fp,
						ExpectedValue: "> 0", ActualValue: q.String(), Message: msg,
					})
				}
				return results
			},
		},
		{
			ruleKey: "logic.tax_within_total", ruleName: "Logical: Tax Within Total",
			severity: domain.ValidationSeverityError,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if !d.TotalAmount.Valid || d.TaxDetails == nil || !d.TaxDetails.Amount.Valid {
					return nil
				}
				tax := d.TaxDetails.Amount.Decimal
				passed := tax.LessThanOrEqual(d.TotalAmount.Decimal)
				msg := "Logical: Tax Within Total: tax_details.amount does not exceed total_amount"
				if !passed {
					msg = fmt.Sprintf("Logical: Tax Within Total: tax_details.amount %s exceeds total_amount %s", fmtd(tax), fmtd(d.TotalAmount.Decimal))
				}
				return []ValidationResult{{
					Passed: passed, FieldPath: "tax_details.amount",
					ExpectedValue: "<= " + fmtd(d.TotalAmount.Decimal), ActualValue: fmtd(tax), Message: msg,
				}}
			},
		},
		{
			ruleKey: "logic.tax_rate_range", ruleName: "Logical: Tax Rate Range",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if d.TaxDetails == nil || !d.TaxDetails.Rate.Valid {
					return nil
				}
				rate := d.TaxDetails.Rate.Decimal
				passed := !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(100))
				msg := "Logical: Tax Rate Range: tax_details.rate is a valid percentage"
				if !passed {
					msg = fmt.Sprintf("Logical: Tax Rate Range: tax_details.rate %s is outside 0-100", rate.String())
				}
				return []ValidationResult{{
					Passed: passed, FieldPath: "tax_details.rate",
					ExpectedValue: "0-100", ActualValue: rate.String(), Message: msg,
				}}
			},
		},
		{
			ruleKey: "logic.date_not_future", ruleName: "Logical: Date Not In Future",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if d.Date == nil {
					return nil
				}
				date, err := time.Parse(DateLayout, *d.Date)
				if err != nil {
					return nil
				}
				// One day of slack for receipts issued in a timezone ahead of UTC.
				passed := !date.After(time.Now().UTC().AddDate(0, 0, 1))
				msg := "Logical: Date Not In Future: date is not in the future"
				if !passed {
					msg = fmt.Sprintf("Logical: Date Not In Future: date %s is in the future", *d.Date)
				}
				return []ValidationResult{{
					Passed: passed, FieldPath: "date",
					ExpectedValue: "<= today", ActualValue: *d.Date, Message: msg,
				}}
			},
		},
	}
}
