package activity

import (
	"context"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/queue"
)

// ActivityDeletedHandler 级联删除活动派生的数据
type ActivityDeletedHandler struct {
	env     *Envelope
	deleter Deleter
}

func NewActivityDeletedHandler(deleter Deleter) *ActivityDeletedHandler {
	return &ActivityDeletedHandler{env: NewEnvelope("activity_deleted"), deleter: deleter}
}

func (h *ActivityDeletedHandler) Handle(ctx context.Context, d queue.Delivery) queue.Outcome {
	return process(h.env, ctx, d, func(ctx context.Context, evt model.ActivityDeleted) (string, error) {
		if _, err := h.deleter.DeleteActivity(ctx, evt.ActivityID); err != nil {
			return "", err
		}
		return "deleted", nil
	})
}
