package activity

import (
	"context"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/queue"
)

// ActivityUpdatedHandler 按 verb 分发活动更新事件
type ActivityUpdatedHandler struct {
	env        *Envelope
	dispatcher Dispatcher
}

func NewActivityUpdatedHandler(dispatcher Dispatcher) *ActivityUpdatedHandler {
	return &ActivityUpdatedHandler{env: NewEnvelope("activity_updated"), dispatcher: dispatcher}
}

func (h *ActivityUpdatedHandler) Handle(ctx context.Context, d queue.Delivery) queue.Outcome {
	return process(h.env, ctx, d, func(ctx context.Context, evt model.ActivityUpdated) (string, error) {
		res, err := h.dispatcher.HandleUpdated(ctx, evt)
		return res.String(), err
	})
}
