package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
	"ledgerlens/internal/taxonomy"
)

type correctionRepo struct {
	db       *sqlx.DB
	registry *taxonomy.Registry
}

type correctionRow struct {
	ID              uuid.UUID           `db:"id"`
	Description     string              `db:"description"`
	MerchantName    string              `db:"merchant_name"`
	Amount          decimal.NullDecimal `db:"amount"`
	CorrectCategory string              `db:"correct_category"`
	SubmittedAt     time.Time           `db:"submitted_at"`
}

// NewCorrectionRepo creates a PostgreSQL-backed CorrectionStore. The table has no
// UPDATE or DELETE path.
func NewCorrectionRepo(db *sqlx.DB, registry *taxonomy.Registry) port.CorrectionStore {
	return &correctionRepo{db: db, registry: registry}
}

func (r *correctionRepo) Record(ctx context.Context, c *domain.Correction) error {
	if !r.registry.Contains(string(c.CorrectCategory)) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCategory, c.CorrectCategory)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now().UTC()
	}
	var amount decimal.NullDecimal
	if c.OriginalInput.Amount != nil {
		amount = decimal.NewNullDecimal(*c.OriginalInput.Amount)
	}

	query := `INSERT INTO corrections (id, description, merchant_name, amount, correct_category, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OriginalInput.Description, c.OriginalInput.MerchantName, amount,
		string(c.CorrectCategory), c.SubmittedAt)
	if err != nil {
		return fmt.Errorf("correctionRepo.Record: %w", err)
	}
	return nil
}

func (r *correctionRepo) ReadAll(ctx context.Context) ([]domain.Correction, error) {
	var rows []correctionRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT id, description, merchant_name, amount, correct_category, submitted_at FROM corrections ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("correctionRepo.ReadAll: %w", err)
	}
	out := make([]domain.Correction, 0, len(rows))
	for _, row := range rows {
		c := domain.Correction{
			ID: row.ID,
			OriginalInput: domain.CategorizationInput{
				Description:  row.Description,
				MerchantName: row.MerchantName,
			},
			CorrectCategory: domain.Category(row.CorrectCategory),
			SubmittedAt:     row.SubmittedAt.UTC(),
		}
		if row.Amount.Valid {
			amt := row.Amount.Decimal
			c.OriginalInput.Amount = &amt
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *correctionRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM corrections"); err != nil {
		return 0, fmt.Errorf("correctionRepo.Count: %w", err)
	}
	return n, nil
}
