package receipt

import (
	"context"
	"fmt"
	"strings"

	"ledgerlens/internal/domain"
)

// requiredFieldValidator checks that a required field is present.
type requiredFieldValidator struct {
	ruleKey   string
	ruleName  string
	fieldPath string
	severity  domain.ValidationSeverity
	extract   func(*domain.ReceiptExtraction) (string, bool)
}

func (v *requiredFieldValidator) RuleKey() string                     { return v.ruleKey }
func (v *requiredFieldValidator) RuleName() string                    { return v.ruleName }
func (v *requiredFieldValidator) Severity() domain.ValidationSeverity { return v.severity }
func (v *requiredFieldValidator) ReconciliationCritical() bool        { return false }

func (v *requiredFieldValidator) Validate(_ context.Context, data *domain.ReceiptExtraction) []ValidationResult {
	val, present := v.extract(data)
	msg := fmt.Sprintf("%s: %s is present", v.ruleName, v.fieldPath)
	if !present {
		msg = fmt.Sprintf("%s: %s is missing or empty", v.ruleName, v.fieldPath)
	}
	return []ValidationResult{{
		Passed:        present,
		FieldPath:     v.fieldPath,
		ExpectedValue: "non-empty value",
		ActualValue:   val,
		Message:       msg,
	}}
}

func stringField(s string) (string, bool) {
	return s, strings.TrimSpace(s) != ""
}

// RequiredFieldValidators returns the presence checks for receipt fields.
func RequiredFieldValidators() []*requiredFieldValidator {
	return []*requiredFieldValidator{
		{
			ruleKey: "required.total_amount", ruleName: "Required: Total Amount",
			fieldPath: "total_amount", severity: domain.ValidationSeverityError,
			extract: func(d *domain.ReceiptExtraction) (string, bool) {
				if !d.TotalAmount.Valid {
					return "", false
				}
				return fmtd(d.TotalAmount.Decimal), true
			},
		},
		{
			ruleKey: "required.merchant_name", ruleName: "Required: Merchant Name",
			fieldPath: "merchant_name", severity: domain.ValidationSeverityWarning,
			extract: func(d *domain.ReceiptExtraction) (string, bool) {
				return stringField(d.MerchantName)
			},
		},
		{
			ruleKey: "required.currency", ruleName: "Required: Currency",
			fieldPath: "currency", severity: domain.ValidationSeverityWarning,
			extract: func(d *domain.ReceiptExtraction) (string, bool) {
				return stringField(d.Currency)
			},
		},
		{
			ruleKey: "required.date", ruleName: "Required: Date",
			fieldPath: "date", severity: domain.ValidationSeverityWarning,
			extract: func(d *domain.ReceiptExtraction) (string, bool) {
				if d.Date == nil {
					return "", false
				}
				return stringField(*d.Date)
			},
		},
	}
}
