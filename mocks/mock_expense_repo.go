package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/domain"
)

// MockExpenseRepo is a mock implementation of port.ExpenseRepository.
type MockExpenseRepo struct {
	mock.Mock
}

func (m *MockExpenseRepo) Create(ctx context.Context, e *domain.Expense) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockExpenseRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}

func (m *MockExpenseRepo) Update(ctx context.Context, e *domain.Expense) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockExpenseRepo) SoftDelete(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockExpenseRepo) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Expense), args.Int(1), args.Error(2)
}

func (m *MockExpenseRepo) SummaryByCategory(ctx context.Context, filter domain.ExpenseFilter) ([]domain.CategoryTotal, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CategoryTotal), args.Error(1)
}
