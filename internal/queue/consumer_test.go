package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/activity-feed/internal/testutil"
)

const testGroup = "feed-workers"

func testOptions() Options {
	return Options{
		Group:         testGroup,
		Consumer:      "c1",
		DeadLetter:    "activity.dead",
		Prefetch:      4,
		Block:         20 * time.Millisecond,
		MaxDeliveries: 3,
		RetryBackoff:  time.Millisecond,
		MaxBackoff:    5 * time.Millisecond,
	}
}

// start runs c until the returned stop func is called.
func start(t *testing.T, c *Consumer) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not stop")
		}
	}
}

type recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *recorder) add(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *recorder) snapshot() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func pending(t *testing.T, client *redis.Client, stream string) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), stream, testGroup).Result()
	require.NoError(t, err)
	return p.Count
}

func TestConsumerAcks(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)
	pub := NewPublisher(client)

	rec := &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.created", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		return Ack
	}))
	stop := start(t, c)

	for _, body := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		_, err := pub.Publish(ctx, "activity.created", []byte(body))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, 3*time.Second, 10*time.Millisecond)
	stop()

	var bodies []string
	for _, d := range rec.snapshot() {
		assert.Equal(t, "activity.created", d.Stream)
		assert.Equal(t, 1, d.Attempt)
		assert.NotEmpty(t, d.ID)
		bodies = append(bodies, string(d.Payload))
	}
	assert.ElementsMatch(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, bodies)
	assert.EqualValues(t, 0, pending(t, client, "activity.created"))
}

func TestConsumerRoutesByStream(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)
	pub := NewPublisher(client)

	created, deleted := &recorder{}, &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.created", HandlerFunc(func(_ context.Context, d Delivery) Outcome { created.add(d); return Ack }))
	c.Register("activity.deleted", HandlerFunc(func(_ context.Context, d Delivery) Outcome { deleted.add(d); return Ack }))
	stop := start(t, c)
	defer stop()

	_, err := pub.Publish(ctx, "activity.deleted", []byte(`{}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(deleted.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, created.snapshot())
}

func TestConsumerRequeuesWithNextAttempt(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)

	rec := &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.updated", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		if d.Attempt < 2 {
			return Requeue
		}
		return Ack
	}))
	stop := start(t, c)

	_, err := NewPublisher(client).Publish(ctx, "activity.updated", []byte(`{"action":"join"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
	stop()

	got := rec.snapshot()
	assert.Equal(t, 1, got[0].Attempt)
	assert.Equal(t, 2, got[1].Attempt)
	assert.Equal(t, got[0].Payload, got[1].Payload)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.EqualValues(t, 0, pending(t, client, "activity.updated"))

	n, err := client.XLen(ctx, "activity.dead").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsumerDeadLetters(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)

	rec := &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.updated", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		return Requeue
	}))
	stop := start(t, c)

	id, err := NewPublisher(client).Publish(ctx, "activity.updated", []byte(`{"action":"join"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, "activity.dead").Result()
		return err == nil && n == 1
	}, 3*time.Second, 10*time.Millisecond)
	stop()

	assert.Len(t, rec.snapshot(), 3)
	assert.EqualValues(t, 0, pending(t, client, "activity.updated"))

	msgs, err := client.XRange(ctx, "activity.dead", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	dead := msgs[0].Values
	assert.Equal(t, `{"action":"join"}`, dead[fieldPayload])
	assert.Equal(t, "activity.updated", dead[fieldSource])
	assert.Equal(t, "3", dead[fieldAttempt])
	assert.Contains(t, dead[fieldReason], "3 attempts")
	assert.NotEqual(t, id, dead[fieldMessageID], "dead letter records the last delivery id")
}

func TestConsumerRequeuesPanics(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)

	rec := &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.deleted", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		if d.Attempt == 1 {
			panic("boom")
		}
		return Ack
	}))
	stop := start(t, c)
	defer stop()

	_, err := NewPublisher(client).Publish(ctx, "activity.deleted", []byte(`{}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestConsumerDropsEntriesWithoutPayload(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)

	rec := &recorder{}
	c := NewConsumer(client, testOptions())
	c.Register("activity.created", HandlerFunc(func(_ context.Context, d Delivery) Outcome { rec.add(d); return Ack }))
	stop := start(t, c)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "activity.created", Values: map[string]interface{}{"junk": "1"}}).Err())
	_, err := NewPublisher(client).Publish(ctx, "activity.created", []byte(`{}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, "{}", string(rec.snapshot()[0].Payload))
	assert.EqualValues(t, 0, pending(t, client, "activity.created"))
}

// strand leaves id pending on a consumer that never acks, as a crashed worker would.
func strand(t *testing.T, client *redis.Client, stream string, values map[string]interface{}) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, client.XGroupCreateMkStream(ctx, stream, testGroup, "0").Err())
	id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
	require.NoError(t, err)
	res, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    testGroup,
		Consumer: "crashed",
		Streams:  []string{stream, ">"},
		Count:    1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0].Messages, 1)
	return id
}

func reclaimOptions() Options {
	opts := testOptions()
	opts.ClaimIdle = 10 * time.Millisecond
	opts.ClaimInterval = 10 * time.Millisecond
	return opts
}

func TestConsumerReclaimsLostDeliveries(t *testing.T) {
	_, client := testutil.NewRedis(t)
	id := strand(t, client, "activity.updated", map[string]interface{}{fieldPayload: `{"action":"join"}`, fieldAttempt: 1})

	rec := &recorder{}
	c := NewConsumer(client, reclaimOptions())
	c.Register("activity.updated", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		return Ack
	}))
	stop := start(t, c)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)
	stop()

	got := rec.snapshot()[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 2, got.Attempt, "the lost delivery counts as an attempt")
	assert.EqualValues(t, 0, pending(t, client, "activity.updated"))
}

func TestConsumerDeadLettersEntriesThatKeepCrashingWorkers(t *testing.T) {
	_, client := testutil.NewRedis(t)
	ctx := testutil.Context(t)
	id := strand(t, client, "activity.deleted", map[string]interface{}{fieldPayload: `{}`, fieldAttempt: 3})

	rec := &recorder{}
	c := NewConsumer(client, reclaimOptions())
	c.Register("activity.deleted", HandlerFunc(func(_ context.Context, d Delivery) Outcome {
		rec.add(d)
		return Ack
	}))
	stop := start(t, c)

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, "activity.dead").Result()
		return err == nil && n == 1
	}, 3*time.Second, 10*time.Millisecond)
	stop()

	assert.Empty(t, rec.snapshot(), "an exhausted entry is not handed to the handler again")
	assert.EqualValues(t, 0, pending(t, client, "activity.deleted"))

	msgs, err := client.XRange(ctx, "activity.dead", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].Values[fieldMessageID])
	assert.Equal(t, "4", msgs[0].Values[fieldAttempt])
	assert.Equal(t, "activity.deleted", msgs[0].Values[fieldSource])
}

func TestConsumerRequiresStreams(t *testing.T) {
	_, client := testutil.NewRedis(t)
	err := NewConsumer(client, testOptions()).Run(context.Background())
	require.Error(t, err)
}

func TestBackoff(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second
	assert.Equal(t, 100*time.Millisecond, Backoff(base, max, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, max, 2))
	assert.Equal(t, 800*time.Millisecond, Backoff(base, max, 4))
	assert.Equal(t, time.Second, Backoff(base, max, 5))
	assert.Equal(t, time.Second, Backoff(base, max, 50))
	assert.Equal(t, 100*time.Millisecond, Backoff(base, max, 0))
	assert.Zero(t, Backoff(0, max, 3))
}

func TestToDelivery(t *testing.T) {
	d, ok := toDelivery("s", redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": "x", "attempt": "4"}})
	require.True(t, ok)
	assert.Equal(t, Delivery{Stream: "s", ID: "1-0", Payload: []byte("x"), Attempt: 4}, d)

	d, ok = toDelivery("s", redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": "x", "attempt": "bogus"}})
	require.True(t, ok)
	assert.Equal(t, 1, d.Attempt)

	_, ok = toDelivery("s", redis.XMessage{ID: "1-0"})
	assert.False(t, ok)
}
