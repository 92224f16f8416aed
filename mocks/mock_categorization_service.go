package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/domain"
)

// MockCategorizationService is a mock implementation of service.CategorizationService.
type MockCategorizationService struct {
	mock.Mock
}

func (m *MockCategorizationService) Categorize(ctx context.Context, in domain.CategorizationInput) (*domain.CategorizationResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CategorizationResult), args.Error(1)
}

func (m *MockCategorizationService) CategorizeBatch(ctx context.Context, inputs []domain.CategorizationInput) ([]domain.CategorizationResult, error) {
	args := m.Called(ctx, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CategorizationResult), args.Error(1)
}

func (m *MockCategorizationService) SubmitCorrection(ctx context.Context, in domain.CategorizationInput, category string) (*domain.Correction, error) {
	args := m.Called(ctx, in, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Correction), args.Error(1)
}

func (m *MockCategorizationService) ExtractReceipt(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error) {
	args := m.Called(ctx, image, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReceiptExtraction), args.Error(1)
}

func (m *MockCategorizationService) ListCategories() []domain.Category {
	args := m.Called()
	return args.Get(0).([]domain.Category)
}

func (m *MockCategorizationService) Health(ctx context.Context) domain.Health {
	args := m.Called(ctx)
	return args.Get(0).(domain.Health)
}
