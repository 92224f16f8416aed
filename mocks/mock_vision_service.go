package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ledgerlens/internal/port"
)

// MockVisionService is a mock implementation of port.VisionService and port.Pinger.
type MockVisionService struct {
	mock.Mock
}

func (m *MockVisionService) Extract(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.VisionOutput), args.Error(1)
}

func (m *MockVisionService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
