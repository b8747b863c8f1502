package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher appends messages to streams.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 写入一条首次投递的消息，返回 stream entry id
func (p *Publisher) Publish(ctx context.Context, stream string, payload []byte) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			fieldPayload: string(payload),
			fieldAttempt: 1,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}
