// Package queue is a durable work queue on Redis Streams consumer groups.
package queue

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPayload   = "payload"
	fieldAttempt   = "attempt"
	fieldReason    = "reason"
	fieldSource    = "source"
	fieldMessageID = "message_id"
)

// Delivery 一次投递；Attempt 从 1 开始，每次重新入队加一
type Delivery struct {
	Stream  string
	ID      string
	Payload []byte
	Attempt int
}

// Outcome 处理结果，决定消息被确认还是重新投递
type Outcome int

const (
	Ack Outcome = iota
	Requeue
)

func (o Outcome) String() string {
	if o == Ack {
		return "ack"
	}
	return "requeue"
}

// Handler consumes one delivery. It must be safe for concurrent use.
type Handler interface {
	Handle(ctx context.Context, d Delivery) Outcome
}

type HandlerFunc func(ctx context.Context, d Delivery) Outcome

func (f HandlerFunc) Handle(ctx context.Context, d Delivery) Outcome { return f(ctx, d) }

func toDelivery(stream string, msg redis.XMessage) (Delivery, bool) {
	d := Delivery{Stream: stream, ID: msg.ID, Attempt: 1}
	payload, ok := msg.Values[fieldPayload].(string)
	if !ok {
		return d, false
	}
	d.Payload = []byte(payload)
	if s, ok := msg.Values[fieldAttempt].(string); ok {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			d.Attempt = n
		}
	}
	return d, true
}
