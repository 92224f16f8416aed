package receipt

import (
	"context"
	"fmt"

	"ledgerlens/internal/domain"
)

// mathValidator checks arithmetic relationships between amounts.
type mathValidator struct {
	ruleKey       string
	ruleName      string
	severity      domain.ValidationSeverity
	reconCritical bool
	validate      func(*domain.ReceiptExtraction) []ValidationResult
}

func (v *mathValidator) RuleKey() string                     { return v.ruleKey }
func (v *mathValidator) RuleName() string                    { return v.ruleName }
func (v *mathValidator) Severity() domain.ValidationSeverity { return v.severity }
func (v *mathValidator) ReconciliationCritical() bool        { return v.reconCritical }

func (v *mathValidator) Validate(_ context.Context, data *domain.ReceiptExtraction) []ValidationResult {
	return v.validate(data)
}

func mathResult(passed bool, fieldPath, expected, actual, ruleName string) ValidationResult {
	msg := fmt.Sprintf("%s: %s calculation matches", ruleName, fieldPath)
	if !passed {
		msg = fmt.Sprintf("%s: %s calculation mismatch (expected %s, got %s)", ruleName, fieldPath, expected, actual)
	}
	return ValidationResult{
		Passed: passed, FieldPath: fieldPath,
		ExpectedValue: expected, ActualValue: actual, Message: msg,
	}
}

// MathValidators returns all arithmetic validators.
func MathValidators() []*mathValidator {
	return []*mathValidator{
		{
			ruleKey: "math.total_reconciles", ruleName: "Math: Items Plus Tax Equals Total",
			severity: domain.ValidationSeverityError, reconCritical: true,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if !d.TotalAmount.Valid {
					// required.total_amount reports the missing total.
					return nil
				}
				expected, ok := d.ExpectedTotal()
				if !ok {
					return []ValidationResult{{
						Passed:        false,
						FieldPath:     "total_amount",
						ExpectedValue: "items or subtotal to reconcile against",
						ActualValue:   fmtd(d.TotalAmount.Decimal),
						Message:       "Math: Items Plus Tax Equals Total: total_amount cannot be verified without items or a subtotal",
					}}
				}
				return []ValidationResult{mathResult(d.Reconciles(), "total_amount",
					fmtd(expected), fmtd(d.TotalAmount.Decimal), "Math: Items Plus Tax Equals Total")}
			},
		},
		{
			ruleKey: "math.subtotal_matches_items", ruleName: "Math: Subtotal Equals Items",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if !d.SubtotalAmount.Valid || len(d.Items) == 0 {
					return nil
				}
				items := d.ItemsTotal()
				passed := items.Sub(d.SubtotalAmount.Decimal).Abs().LessThanOrEqual(domain.SumTolerance(d.SubtotalAmount.Decimal))
				return []ValidationResult{mathResult(passed, "subtotal_amount",
					fmtd(items), fmtd(d.SubtotalAmount.Decimal), "Math: Subtotal Equals Items")}
			},
		},
		{
			ruleKey: "math.item.total_price", ruleName: "Math: Item Quantity Times Unit Price",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				results := make([]ValidationResult, 0, len(d.Items))
				for i := range d.Items {
					item := &d.Items[i]
					if item.UnitPrice.IsZero() {
						continue
					}
					expected := item.Quantity.Mul(item.UnitPrice)
					passed := expected.Sub(item.TotalPrice).Abs().LessThanOrEqual(domain.SumTolerance(item.TotalPrice))
					results = append(results, mathResult(passed, itemPath(i, "total_price"),
						fmtd(expected), fmtd(item.TotalPrice), "Math: Item Quantity Times Unit Price"))
				}
				return results
			},
		},
	}
}
