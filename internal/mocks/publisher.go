package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"avenir-sync/internal/telemetry"
)

// PublisherMock stands in for the audit bus in emitter tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

var _ telemetry.Publisher = (*PublisherMock)(nil)
