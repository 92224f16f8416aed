package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/domain"
)

// MockReceiptExtractor is a mock implementation of service.ReceiptExtractor.
type MockReceiptExtractor struct {
	mock.Mock
}

func (m *MockReceiptExtractor) Extract(ctx context.Context, image []byte, format string) (*domain.ReceiptExtraction, error) {
	args := m.Called(ctx, image, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReceiptExtraction), args.Error(1)
}

func (m *MockReceiptExtractor) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockReceiptExtractor) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
