package receipt

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"ledgerlens/internal/domain"
)

// DateLayout is the canonical receipt date format.
const DateLayout = "2006-01-02"

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// KnownCurrencies is the set of ISO 4217 codes accepted on receipts.
var KnownCurrencies = map[string]bool{
	"INR": true, "USD": true, "EUR": true, "GBP": true, "JPY": true,
	"AUD": true, "CAD": true, "CHF": true, "CNY": true, "SGD": true,
	"AED": true, "SAR": true, "HKD": true, "MYR": true, "THB": true,
	"NZD": true, "SEK": true, "NOK": true, "DKK": true, "ZAR": true,
	"KRW": true, "MXN": true, "BRL": true, "IDR": true, "PHP": true,
}

// formatValidator checks a normalized field against its canonical format.
type formatValidator struct {
	ruleKey  string
	ruleName string
	severity domain.ValidationSeverity
	validate func(*domain.ReceiptExtraction) []ValidationResult
}

func (v *formatValidator) RuleKey() string                     { return v.ruleKey }
func (v *formatValidator) RuleName() string                    { return v.ruleName }
func (v *formatValidator) Severity() domain.ValidationSeverity { return v.severity }
func (v *formatValidator) ReconciliationCritical() bool        { return false }

func (v *formatValidator) Validate(_ context.Context, data *domain.ReceiptExtraction) []ValidationResult {
	return v.validate(data)
}

func formatResult(passed bool, fieldPath, expected, actual, ruleName string) ValidationResult {
	msg := fmt.Sprintf("%s: %s matches expected format", ruleName, fieldPath)
	if !passed {
		msg = fmt.Sprintf("%s: %s does not match expected format", ruleName, fieldPath)
	}
	return ValidationResult{
		Passed: passed, FieldPath: fieldPath,
		ExpectedValue: expected, ActualValue: actual, Message: msg,
	}
}

// FormatValidators returns all format validators.
func FormatValidators() []*formatValidator {
	return []*formatValidator{
		{
			ruleKey: "format.date", ruleName: "Format: Date",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if d.Date == nil {
					return nil
				}
				_, err := time.Parse(DateLayout, *d.Date)
				return []ValidationResult{formatResult(err == nil, "date", "YYYY-MM-DD", *d.Date, "Format: Date")}
			},
		},
		{
			ruleKey: "format.time", ruleName: "Format: Time",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if d.Time == nil {
					return nil
				}
				return []ValidationResult{formatResult(timePattern.MatchString(*d.Time), "time", "HH:MM", *d.Time, "Format: Time")}
			},
		},
		{
			ruleKey: "format.currency", ruleName: "Format: Currency",
			severity: domain.ValidationSeverityWarning,
			validate: func(d *domain.ReceiptExtraction) []ValidationResult {
				if d.Currency == "" {
					return nil
				}
				return []ValidationResult{formatResult(KnownCurrencies[d.Currency], "currency", "ISO 4217 code", d.Currency, "Format: Currency")}
			},
		},
	}
}
