package validator

import (
	"context"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/validator/receipt"
)

// Validator is the interface for a single built-in validation rule.
type Validator interface {
	Validate(ctx context.Context, data *domain.ReceiptExtraction) []receipt.ValidationResult
	RuleKey() string
	RuleName() string
	Severity() domain.ValidationSeverity
	ReconciliationCritical() bool
}
