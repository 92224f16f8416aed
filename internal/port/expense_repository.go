package port

import (
	"context"

	"github.com/google/uuid"

	"ledgerlens/internal/domain"
)

// ExpenseRepository is the document store for persisted expenses.
// Delete is a soft delete; deleted expenses are invisible to reads.
type ExpenseRepository interface {
	Create(ctx context.Context, e *domain.Expense) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error)
	Update(ctx context.Context, e *domain.Expense) error
	SoftDelete(ctx context.Context, userID string, id uuid.UUID) error
	List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error)
	SummaryByCategory(ctx context.Context, filter domain.ExpenseFilter) ([]domain.CategoryTotal, error)
}
