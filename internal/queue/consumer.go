package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/activity-feed/config"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
	"github.com/d60-Lab/activity-feed/pkg/monitoring"
)

// Options 消费者参数，见 config.QueueConfig
type Options struct {
	Group          string
	Consumer       string
	DeadLetter     string
	Prefetch       int
	Block          time.Duration
	MaxDeliveries  int
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
	ClaimIdle      time.Duration
	ClaimInterval  time.Duration
	RateLimit      float64
	HandlerTimeout time.Duration
}

func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		Group:          cfg.Group,
		Consumer:       cfg.Consumer,
		DeadLetter:     cfg.DeadLetter,
		Prefetch:       cfg.Prefetch,
		Block:          cfg.BlockTimeout,
		MaxDeliveries:  cfg.MaxDeliveries,
		RetryBackoff:   cfg.RetryBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		ClaimIdle:      cfg.ClaimIdle,
		ClaimInterval:  cfg.ClaimInterval,
		RateLimit:      cfg.RateLimit,
		HandlerTimeout: cfg.HandlerTimeout,
	}
}

// Consumer reads registered streams through one consumer group.
//
// At most Prefetch deliveries are handled at a time. A delivery is acked only
// after its handler returns, so a crashed worker leaves it pending and the
// reclaim loop of a live worker picks it up after ClaimIdle.
type Consumer struct {
	client   *redis.Client
	opts     Options
	handlers map[string]Handler
	streams  []string
	limiter  *rate.Limiter
	sem      chan struct{}
	wg       sync.WaitGroup
	log      *zap.Logger
}

func NewConsumer(client *redis.Client, opts Options) *Consumer {
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}
	if opts.MaxDeliveries <= 0 {
		opts.MaxDeliveries = 10
	}
	if opts.Block <= 0 {
		opts.Block = time.Second
	}
	c := &Consumer{
		client:   client,
		opts:     opts,
		handlers: make(map[string]Handler),
		sem:      make(chan struct{}, opts.Prefetch),
		log:      logger.Named("queue"),
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Register binds a handler to a stream. Call before Run.
func (c *Consumer) Register(stream string, h Handler) {
	if _, ok := c.handlers[stream]; !ok {
		c.streams = append(c.streams, stream)
	}
	c.handlers[stream] = h
}

// Run consumes until ctx is cancelled, then waits for in-flight handlers.
func (c *Consumer) Run(ctx context.Context) error {
	if len(c.streams) == 0 {
		return errors.New("no streams registered")
	}
	if err := c.ensureGroups(ctx); err != nil {
		return err
	}
	c.log.Info("consumer started",
		zap.Strings("streams", c.streams),
		zap.String("group", c.opts.Group),
		zap.String("consumer", c.opts.Consumer),
		zap.Int("prefetch", c.opts.Prefetch))

	if c.opts.ClaimInterval > 0 && c.opts.ClaimIdle > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.reclaimLoop(ctx)
		}()
	}

	for ctx.Err() == nil {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Error("read streams", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}

	c.wg.Wait()
	c.log.Info("consumer stopped")
	return nil
}

func (c *Consumer) ensureGroups(ctx context.Context) error {
	for _, stream := range c.streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.opts.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", c.opts.Group, stream, err)
		}
	}
	return nil
}

func (c *Consumer) poll(ctx context.Context) error {
	args := make([]string, 0, len(c.streams)*2)
	args = append(args, c.streams...)
	for range c.streams {
		args = append(args, ">")
	}

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  args,
		Count:    int64(c.opts.Prefetch),
		Block:    c.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, s := range res {
		for _, msg := range s.Messages {
			if !c.dispatch(ctx, s.Stream, msg, 0) {
				return nil
			}
		}
	}
	return nil
}

// dispatch starts a handler goroutine once a prefetch slot is free. It
// returns false when ctx ends first; the message then stays pending.
// lost 是被崩溃的 worker 吞掉的投递次数，计入 attempt
func (c *Consumer) dispatch(ctx context.Context, stream string, msg redis.XMessage, lost int) bool {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false
		}
	}
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		d, ok := toDelivery(stream, msg)
		if !ok {
			<-c.sem
			c.log.Warn("entry without payload dropped", zap.String("stream", stream), zap.String("message_id", msg.ID))
			c.ack(ctx, stream, msg.ID)
			return
		}
		d.Attempt += lost
		if d.Attempt > c.opts.MaxDeliveries {
			<-c.sem
			c.deadLetter(ctx, d, fmt.Sprintf("gave up after %d attempts, %d lost by workers", d.Attempt-1, lost))
			return
		}
		outcome := c.handle(ctx, d)
		<-c.sem
		c.settle(ctx, d, outcome)
	}()
	return true
}

func (c *Consumer) handle(ctx context.Context, d Delivery) (outcome Outcome) {
	// in-flight handlers run to completion on shutdown
	hctx := context.WithoutCancel(ctx)
	if c.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, c.opts.HandlerTimeout)
		defer cancel()
	}

	defer func() {
		if v := recover(); v != nil {
			monitoring.Recover(v, map[string]string{"stream": d.Stream, "message_id": d.ID})
			c.log.Error("handler panic", zap.String("stream", d.Stream), zap.String("message_id", d.ID), zap.Any("panic", v))
			outcome = Requeue
		}
	}()
	return c.handlers[d.Stream].Handle(hctx, d)
}

func (c *Consumer) settle(ctx context.Context, d Delivery, outcome Outcome) {
	if outcome == Ack {
		c.ack(ctx, d.Stream, d.ID)
		return
	}
	if d.Attempt >= c.opts.MaxDeliveries {
		c.deadLetter(ctx, d, fmt.Sprintf("gave up after %d attempts", d.Attempt))
		return
	}

	wait := Backoff(c.opts.RetryBackoff, c.opts.MaxBackoff, d.Attempt)
	select {
	case <-ctx.Done():
		// left pending; another worker reclaims it
		return
	case <-time.After(wait):
	}

	sctx := context.WithoutCancel(ctx)
	_, err := c.client.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(sctx, &redis.XAddArgs{
			Stream: d.Stream,
			Values: map[string]interface{}{
				fieldPayload: string(d.Payload),
				fieldAttempt: d.Attempt + 1,
			},
		})
		pipe.XAck(sctx, d.Stream, c.opts.Group, d.ID)
		return nil
	})
	if err != nil {
		c.log.Error("requeue failed", zap.String("stream", d.Stream), zap.String("message_id", d.ID), zap.Error(err))
		return
	}
	c.log.Debug("requeued", zap.String("stream", d.Stream), zap.String("message_id", d.ID),
		zap.Int("attempt", d.Attempt+1), zap.Duration("backoff", wait))
}

func (c *Consumer) deadLetter(ctx context.Context, d Delivery, reason string) {
	sctx := context.WithoutCancel(ctx)
	_, err := c.client.TxPipelined(sctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(sctx, &redis.XAddArgs{
			Stream: c.opts.DeadLetter,
			Values: map[string]interface{}{
				fieldPayload:   string(d.Payload),
				fieldAttempt:   d.Attempt,
				fieldReason:    reason,
				fieldSource:    d.Stream,
				fieldMessageID: d.ID,
			},
		})
		pipe.XAck(sctx, d.Stream, c.opts.Group, d.ID)
		return nil
	})
	if err != nil {
		c.log.Error("dead letter failed", zap.String("stream", d.Stream), zap.String("message_id", d.ID), zap.Error(err))
		return
	}

	metrics.DeadLettersTotal.WithLabelValues(d.Stream).Inc()
	monitoring.CaptureError(fmt.Errorf("message dead-lettered: %s", reason), map[string]string{
		"stream":     d.Stream,
		"message_id": d.ID,
	})
	c.log.Warn("message dead-lettered",
		zap.String("stream", d.Stream),
		zap.String("message_id", d.ID),
		zap.Int("attempt", d.Attempt),
		zap.ByteString("payload", d.Payload))
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(context.WithoutCancel(ctx), stream, c.opts.Group, id).Err(); err != nil {
		c.log.Error("ack failed", zap.String("stream", stream), zap.String("message_id", id), zap.Error(err))
	}
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.ClaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stream := range c.streams {
				if err := c.reclaim(ctx, stream); err != nil && ctx.Err() == nil {
					c.log.Warn("reclaim failed", zap.String("stream", stream), zap.Error(err))
				}
			}
		}
	}
}

// reclaim takes over entries idle for longer than ClaimIdle.
func (c *Consumer) reclaim(ctx context.Context, stream string) error {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    c.opts.Group,
			Consumer: c.opts.Consumer,
			MinIdle:  c.opts.ClaimIdle,
			Start:    start,
			Count:    int64(c.opts.Prefetch),
		}).Result()
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			lost := c.lostDeliveries(ctx, stream, msg.ID)
			c.log.Info("reclaimed", zap.String("stream", stream), zap.String("message_id", msg.ID), zap.Int("lost", lost))
			if !c.dispatch(ctx, stream, msg, lost) {
				return nil
			}
		}
		if next == "0-0" || next == "" {
			return nil
		}
		start = next
	}
}

// lostDeliveries reads the entry's delivery count after it was claimed. Every
// delivery but the current one ended without an ack.
func (c *Consumer) lostDeliveries(ctx context.Context, stream, id string) int {
	res, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    c.opts.Group,
		Start:    id,
		End:      id,
		Count:    1,
		Consumer: c.opts.Consumer,
	}).Result()
	if err != nil || len(res) == 0 || res[0].RetryCount < 2 {
		if err != nil {
			c.log.Warn("read delivery count", zap.String("stream", stream), zap.String("message_id", id), zap.Error(err))
		}
		return 1
	}
	return int(res[0].RetryCount - 1)
}

// Backoff returns base·2^(attempt-1), capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
