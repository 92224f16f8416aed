package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockCategoryModel is a mock implementation of port.CategoryModel.
type MockCategoryModel struct {
	mock.Mock
}

func (m *MockCategoryModel) Predict(ctx context.Context, text string, amount *decimal.Decimal) (map[string]float64, error) {
	args := m.Called(ctx, text, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockCategoryModel) Name() string {
	args := m.Called()
	return args.String(0)
}
