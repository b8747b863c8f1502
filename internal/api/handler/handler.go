package handler

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/activity-feed/config"
	"github.com/d60-Lab/activity-feed/internal/databus/activity"
	"github.com/d60-Lab/activity-feed/internal/service"
)

// EventPublisher 把事件写入队列
type EventPublisher interface {
	Publish(ctx context.Context, stream string, payload []byte) (string, error)
}

// FeedReader 读取某个 action 的扇出结果
type FeedReader interface {
	UserIDsByReference(ctx context.Context, referenceID string) ([]string, error)
}

type Handler struct {
	relService service.RelationshipService
	publisher  EventPublisher
	feeds      FeedReader
	streams    config.QueueConfig
	validate   *validator.Validate
}

func NewHandler(relService service.RelationshipService, publisher EventPublisher, feeds FeedReader, streams config.QueueConfig) *Handler {
	return &Handler{
		relService: relService,
		publisher:  publisher,
		feeds:      feeds,
		streams:    streams,
		validate:   activity.NewValidator(),
	}
}
