package port

import (
	"context"

	"ledgerlens/internal/domain"
)

// CorrectionStore is the append-only log of user corrections kept for retraining.
// Record returns only after the entry is durably written.
type CorrectionStore interface {
	Record(ctx context.Context, c *domain.Correction) error
	ReadAll(ctx context.Context) ([]domain.Correction, error)
	Count(ctx context.Context) (int, error)
}
