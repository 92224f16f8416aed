package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/domain"
)

// MockCorrectionStore is a mock implementation of port.CorrectionStore.
type MockCorrectionStore struct {
	mock.Mock
}

func (m *MockCorrectionStore) Record(ctx context.Context, c *domain.Correction) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCorrectionStore) ReadAll(ctx context.Context) ([]domain.Correction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Correction), args.Error(1)
}

func (m *MockCorrectionStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
