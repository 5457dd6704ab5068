package application

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockAuthenticator) EnsureAuthenticated(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) Commit(ctx context.Context, payload domain.SchedulePayload) (bool, error) {
	args := m.Called(ctx, payload)
	return args.Bool(0), args.Error(1)
}

type mockChannel struct {
	mock.Mock
	name string
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Send(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
