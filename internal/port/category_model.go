package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// CategoryModel is a loaded text classification model. Predict must be safe for
// concurrent use and must not mutate the model.
type CategoryModel interface {
	// Predict returns a score per category label for the given text.
	Predict(ctx context.Context, text string, amount *decimal.Decimal) (map[string]float64, error)
	// Name identifies the loaded model artifact.
	Name() string
}
