package activity

import (
	"context"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/queue"
)

// ActivityCreatedHandler 记录活动创建并扇出给作者的粉丝
type ActivityCreatedHandler struct {
	env        *Envelope
	dispatcher Dispatcher
}

func NewActivityCreatedHandler(dispatcher Dispatcher) *ActivityCreatedHandler {
	return &ActivityCreatedHandler{env: NewEnvelope("activity_created"), dispatcher: dispatcher}
}

func (h *ActivityCreatedHandler) Handle(ctx context.Context, d queue.Delivery) queue.Outcome {
	return process(h.env, ctx, d, func(ctx context.Context, evt model.ActivityCreated) (string, error) {
		res, err := h.dispatcher.HandleCreated(ctx, evt)
		return res.String(), err
	})
}
