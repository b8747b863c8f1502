package activity

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/service"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) HandleCreated(ctx context.Context, evt model.ActivityCreated) (service.Result, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(service.Result), args.Error(1)
}

func (m *mockDispatcher) HandleUpdated(ctx context.Context, evt model.ActivityUpdated) (service.Result, error) {
	args := m.Called(ctx, evt)
	return args.Get(0).(service.Result), args.Error(1)
}

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteActivity(ctx context.Context, activityID string) (*service.DeletionReport, error) {
	args := m.Called(ctx, activityID)
	report, _ := args.Get(0).(*service.DeletionReport)
	return report, args.Error(1)
}
