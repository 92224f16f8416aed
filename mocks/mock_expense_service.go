package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/service"
)

// MockExpenseService is a mock implementation of service.ExpenseService.
type MockExpenseService struct {
	mock.Mock
}

func (m *MockExpenseService) Create(ctx context.Context, userID string, input service.CreateExpenseInput) (*domain.Expense, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}

func (m *MockExpenseService) CreateFromReceipt(ctx context.Context, userID string, image []byte, format string) (*domain.Expense, *domain.ReceiptExtraction, error) {
	args := m.Called(ctx, userID, image, format)
	var e *domain.Expense
	if v := args.Get(0); v != nil {
		e = v.(*domain.Expense)
	}
	var ext *domain.ReceiptExtraction
	if v := args.Get(1); v != nil {
		ext = v.(*domain.ReceiptExtraction)
	}
	return e, ext, args.Error(2)
}

func (m *MockExpenseService) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Expense, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}

func (m *MockExpenseService) Update(ctx context.Context, userID string, id uuid.UUID, input service.UpdateExpenseInput) (*domain.Expense, error) {
	args := m.Called(ctx, userID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}

func (m *MockExpenseService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockExpenseService) List(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Expense), args.Int(1), args.Error(2)
}

func (m *MockExpenseService) Summary(ctx context.Context, filter domain.ExpenseFilter) (*service.ExpenseSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExpenseSummary), args.Error(1)
}

func (m *MockExpenseService) ReceiptURL(ctx context.Context, userID string, id uuid.UUID) (string, error) {
	args := m.Called(ctx, userID, id)
	return args.String(0), args.Error(1)
}
