// Package activity consumes activity events from the queue.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/queue"
	"github.com/d60-Lab/activity-feed/internal/service"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
)

const (
	outcomeMalformed = "malformed"
	outcomeRetry     = "retry"
)

// Envelope 所有事件处理器共享的消费约定：
// 解码校验失败或 ErrMalformed 直接确认丢弃，其它错误重新投递，成功确认。
type Envelope struct {
	event    string
	validate *validator.Validate
	tracer   trace.Tracer
	log      *zap.Logger
}

func NewEnvelope(event string) *Envelope {
	return &Envelope{
		event:    event,
		validate: NewValidator(),
		tracer:   otel.Tracer("github.com/d60-Lab/activity-feed/internal/databus/activity"),
		log:      logger.Named("databus").With(zap.String("event", event)),
	}
}

// NewValidator reports field errors by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// process decodes d into T and runs fn. fn returns a short label for the
// outcome that ends up in logs and metrics.
func process[T any](e *Envelope, ctx context.Context, d queue.Delivery, fn func(ctx context.Context, evt T) (string, error)) queue.Outcome {
	ctx, span := e.tracer.Start(ctx, "consume "+e.event, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", d.Stream),
			attribute.String("messaging.message.id", d.ID),
			attribute.Int("messaging.delivery.attempt", d.Attempt),
		))
	defer span.End()

	start := time.Now()
	fields := []zap.Field{
		zap.String("stream", d.Stream),
		zap.String("message_id", d.ID),
		zap.Int("attempt", d.Attempt),
		zap.ByteString("payload", d.Payload),
	}

	label, outcome, err := decodeAndRun(e, ctx, d, fn)

	metrics.MessagesTotal.WithLabelValues(e.event, label).Inc()
	metrics.MessageDuration.WithLabelValues(e.event).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("feed.outcome", label))

	switch {
	case label == outcomeMalformed:
		e.log.Warn("malformed message dropped", append(fields, zap.Error(err))...)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("message failed, requeue", append(fields, zap.Error(err))...)
	default:
		e.log.Info("message processed", append(fields, zap.String("outcome", label))...)
	}
	return outcome
}

func decodeAndRun[T any](e *Envelope, ctx context.Context, d queue.Delivery, fn func(ctx context.Context, evt T) (string, error)) (string, queue.Outcome, error) {
	var evt T
	if err := json.Unmarshal(d.Payload, &evt); err != nil {
		return outcomeMalformed, queue.Ack, fmt.Errorf("decode: %w", err)
	}
	if err := e.validate.Struct(evt); err != nil {
		return outcomeMalformed, queue.Ack, fmt.Errorf("validate: %w", err)
	}

	label, err := fn(ctx, evt)
	switch {
	case errors.Is(err, service.ErrMalformed):
		return outcomeMalformed, queue.Ack, err
	case err != nil:
		return outcomeRetry, queue.Requeue, err
	}
	return label, queue.Ack, nil
}
