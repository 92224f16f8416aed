package receipt

import (
	"context"

	"ledgerlens/internal/domain"
)

// BuiltinValidator wraps a validator function and its metadata for the registry.
type BuiltinValidator struct {
	key           string
	name          string
	sev           domain.ValidationSeverity
	reconCritical bool
	fn            func(context.Context, *domain.ReceiptExtraction) []ValidationResult
}

func (b *BuiltinValidator) Validate(ctx context.Context, data *domain.ReceiptExtraction) []ValidationResult {
	return b.fn(ctx, data)
}
func (b *BuiltinValidator) RuleKey() string                     { return b.key }
func (b *BuiltinValidator) RuleName() string                    { return b.name }
func (b *BuiltinValidator) Severity() domain.ValidationSeverity { return b.sev }
func (b *BuiltinValidator) ReconciliationCritical() bool        { return b.reconCritical }

type rule interface {
	Validate(context.Context, *domain.ReceiptExtraction) []ValidationResult
	RuleKey() string
	RuleName() string
	Severity() domain.ValidationSeverity
	ReconciliationCritical() bool
}

func wrap(r rule) *BuiltinValidator {
	return &BuiltinValidator{
		key: r.RuleKey(), name: r.RuleName(),
		sev: r.Severity(), reconCritical: r.ReconciliationCritical(),
		fn: r.Validate,
	}
}

// AllBuiltinValidators returns all built-in receipt validators in evaluation order.
func AllBuiltinValidators() []*BuiltinValidator {
	reqVals := RequiredFieldValidators()
	fmtVals := FormatValidators()
	mathVals := MathValidators()
	logVals := LogicalValidators()
	all := make([]*BuiltinValidator, 0, len(reqVals)+len(fmtVals)+len(mathVals)+len(logVals))

	for _, v := range reqVals {
		all = append(all, wrap(v))
	}
	for _, v := range fmtVals {
		all = append(all, wrap(v))
	}
	for _, v := range mathVals {
		all = append(all, wrap(v))
	}
	for _, v := range logVals {
		all = append(all, wrap(v))
	}
	return all
}
