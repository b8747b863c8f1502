package activity

import (
	"context"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/service"
)

type Dispatcher interface {
	HandleCreated(ctx context.Context, evt model.ActivityCreated) (service.Result, error)
	HandleUpdated(ctx context.Context, evt model.ActivityUpdated) (service.Result, error)
}

type Deleter interface {
	DeleteActivity(ctx context.Context, activityID string) (*service.DeletionReport, error)
}
