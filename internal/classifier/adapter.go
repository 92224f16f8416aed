// Package classifier wraps a category model and maps its output onto the taxonomy.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/taxonomy"
)

// TextSeparator joins merchant name and description into the model input.
const TextSeparator = " - "

// Adapter turns a CategorizationInput into a score for every registry category.
type Adapter struct {
	registry *taxonomy.Registry
	model    port.CategoryModel
}

// NewAdapter creates an Adapter. A nil model yields an adapter that reports
// ErrModelUnavailable on every call.
func NewAdapter(registry *taxonomy.Registry, model port.CategoryModel) *Adapter {
	return &Adapter{registry: registry, model: model}
}

// Loaded reports whether a model is available for inference.
func (a *Adapter) Loaded() bool {
	return a.model != nil
}

// ModelName returns the loaded model's name, or empty when none is loaded.
func (a *Adapter) ModelName() string {
	if a.model == nil {
		return ""
	}
	return a.model.Name()
}

// BuildText concatenates merchant name and description. Blank parts are omitted.
func BuildText(in domain.CategorizationInput) string {
	parts := make([]string, 0, 2)
	if m := strings.TrimSpace(in.MerchantName); m != "" {
		parts = append(parts, m)
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, TextSeparator)
}

// Classify runs inference and returns the raw score of every registry category.
// Categories the model does not emit are zero. Per-call failures are returned as
// *domain.InferenceError; a cancelled or expired ctx is returned as is.
func (a *Adapter) Classify(ctx context.Context, in domain.CategorizationInput) (scores map[domain.Category]float64, err error) {
	if a.model == nil {
		return nil, domain.ErrModelUnavailable
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			scores = nil
			err = &domain.InferenceError{Err: fmt.Errorf("model panicked: %v", r)}
		}
	}()

	raw, err := a.model.Predict(ctx, BuildText(in), in.Amount)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &domain.InferenceError{Err: err}
	}

	scores = make(map[domain.Category]float64, a.registry.Len())
	for _, c := range a.registry.Categories() {
		scores[c] = 0
	}
	for label, s := range raw {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return nil, &domain.InferenceError{Err: fmt.Errorf("model returned invalid score %v for %q", s, label)}
		}
		if !a.registry.Contains(label) {
			log.Printf("classifier.Adapter: dropping score for unknown category %q from model %s", label, a.model.Name())
			continue
		}
		scores[domain.Category(label)] = s
	}
	return scores, nil
}
