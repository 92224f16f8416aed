package validator

import (
	"context"
	"log"

	"ledgerlens/internal/domain"
)

// Report summarizes a validation run over one extraction.
type Report struct {
	Discrepancies []domain.Discrepancy
	// HasError is true when any error-severity rule failed.
	HasError bool
	// ReconciliationFailed is true when a reconciliation-critical rule failed.
	ReconciliationFailed bool
}

// Engine runs every registered rule against an extraction.
type Engine struct {
	registry *Registry
}

// NewEngine creates a new validation engine.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Validate runs all rules and collects failed results as discrepancies. It never
// modifies the extraction.
func (e *Engine) Validate(ctx context.Context, data *domain.ReceiptExtraction) Report {
	var rep Report
	var checked int
	for _, v := range e.registry.All() {
		for _, vr := range v.Validate(ctx, data) {
			checked++
			if vr.Passed {
				continue
			}
			rep.Discrepancies = append(rep.Discrepancies, domain.Discrepancy{
				RuleKey:   v.RuleKey(),
				FieldPath: vr.FieldPath,
				Expected:  vr.ExpectedValue,
				Actual:    vr.ActualValue,
				Message:   vr.Message,
				Severity:  v.Severity(),
			})
			if v.Severity() == domain.ValidationSeverityError {
				rep.HasError = true
				if v.ReconciliationCritical() {
					rep.ReconciliationFailed = true
				}
			}
		}
	}
	if len(rep.Discrepancies) > 0 {
		log.Printf("validator.Engine: %d of %d checks failed (error=%t, reconciliation=%t)",
			len(rep.Discrepancies), checked, rep.HasError, rep.ReconciliationFailed)
	}
	return rep
}
