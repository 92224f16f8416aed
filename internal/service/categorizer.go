package service

import (
	"context"
	"errors"
	"log"

	"ledgerlens/internal/classifier"
	"ledgerlens/internal/domain"
	"ledgerlens/internal/ranker"
)

// Categorizer runs the classifier adapter and ranks its scores.
type Categorizer struct {
	adapter *classifier.Adapter
	ranker  *ranker.Ranker
}

// NewCategorizer creates a Categorizer.
func NewCategorizer(adapter *classifier.Adapter, r *ranker.Ranker) *Categorizer {
	return &Categorizer{adapter: adapter, ranker: r}
}

// Loaded reports whether a model is available.
func (c *Categorizer) Loaded() bool {
	return c.adapter.Loaded()
}

// ModelName returns the loaded model's name.
func (c *Categorizer) ModelName() string {
	return c.adapter.ModelName()
}

// Categorize classifies one input. ErrModelUnavailable and ErrInvalidInput are returned
// to the caller; an inference failure yields the fallback result with Error set.
func (c *Categorizer) Categorize(ctx context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error) {
	scores, err := c.adapter.Classify(ctx, in)
	if err != nil {
		var inferenceErr *domain.InferenceError
		if errors.As(err, &inferenceErr) {
			log.Printf("service.Categorizer: inference failed, using fallback: %v", err)
			res := c.ranker.Fallback()
			res.Error = err.Error()
			return &res, nil
		}
		return nil, err
	}
	res := c.ranker.Rank(scores)
	return &res, nil
}
