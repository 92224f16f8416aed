package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/port"
)

const expenseColumns = `id, user_id, source, merchant_name, description, amount, currency, category,
	confidence, expense_date, extraction, receipt_key, created_at, updated_at, deleted_at`

type expenseRepo struct {
	db *sqlx.DB
}

// NewExpenseRepo creates a new PostgreSQL-backed ExpenseRepository.
func NewExpenseRepo(db *sqlx.DB) port.ExpenseRepository {
	return &expenseRepo{db: db}
}

func (r *expenseRepo) Create(ctx context.Context, e *domain.Expense) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `INSERT INTO expenses (id, user_id, source, merchant_name, description, amount, currency,
		category, confidence, expense_date, extraction, receipt_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Source, e.MerchantName, e.Description, e.Amount, e.Currency,
		e.Category, e.Confidence, e.ExpenseDate, nullJSON(e.Extraction), e.ReceiptKey,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("expenseRepo.Create: %w", err)
	}
	return nil
}

func (r *expenseRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error) {
	var e domain.Expense
	err := r.db.GetContext(ctx, &e,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("expenseRepo.GetByID: %w", err)
	}
	return &e, nil
}

func (r *expenseRepo) Update(ctx context.Context, e *domain.Expense) error {
	e.UpdatedAt = time.Now().UTC()
	query := `UPDATE expenses SET merchant_name = $1, description = $2, amount = $3, currency = $4,
		category = $5, confidence = $6, expense_date = $7, source = $8, updated_at = $9
		WHERE id = $10 AND user_id = $11 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query,
		e.MerchantName, e.Description, e.Amount, e.Currency, e.Category, e.Confidence,
		e.ExpenseDate, e.Source, e.UpdatedAt, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("expenseRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *expenseRepo) SoftDelete(ctx context.Context, userID string, id uuid.UUID) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL",
		now, id, userID)
	if err != nil {
		return fmt.Errorf("expenseRepo.SoftDelete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *expenseRepo) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error) {
	where, args := expenseWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM expenses WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("expenseRepo.List count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM expenses WHERE %s ORDER BY expense_date DESC, created_at DESC LIMIT $%d OFFSET $%d",
		expenseColumns, where, n+1, n+2)
	args = append(args, limit, filter.Offset)

	var expenses []domain.Expense
	if err := r.db.SelectContext(ctx, &expenses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("expenseRepo.List: %w", err)
	}
	return expenses, total, nil
}

func (r *expenseRepo) SummaryByCategory(ctx context.Context, filter domain.ExpenseFilter) ([]domain.CategoryTotal, error) {
	where, args := expenseWhere(filter)
	query := `SELECT category, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		FROM expenses WHERE ` + where + ` GROUP BY category ORDER BY total DESC, category`

	var totals []domain.CategoryTotal
	if err := r.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("expenseRepo.SummaryByCategory: %w", err)
	}
	return totals, nil
}

// expenseWhere builds the shared filter clause. Deleted rows are always excluded.
func expenseWhere(filter domain.ExpenseFilter) (string, []interface{}) {
	clauses := []string{"user_id = $1", "deleted_at IS NULL"}
	args := []interface{}{filter.UserID}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("expense_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("expense_date <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
