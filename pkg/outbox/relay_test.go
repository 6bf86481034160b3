package outbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmehra2102/storefront/pkg/docstore"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

type fakeProducer struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *fakeProducer) sent() []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Message(nil), p.msgs...)
}

func discard() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestRelayDispatchesPendingEventsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := discard()
	store := NewDocStore(log, docstore.NewMemory())
	producer := &fakeProducer{failOn: "order-bad"}

	for _, agg := range []string{"order-1", "order-bad", "order-2"} {
		_, err := store.Record(ctx, Event{
			AggregateType: "order",
			AggregateID:   agg,
			Type:          "OrderCreated",
			Payload:       []byte(`{"order_id":"` + agg + `"}`),
			Traceparent:   "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		})
		require.NoError(t, err)
	}

	relay := NewRelay(log, store, NewDispatcher(log, producer), "test-relay", WithInterval(5*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return len(producer.sent()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	msgs := producer.sent()
	assert.Equal(t, "order-1", string(msgs[0].Key))
	assert.Equal(t, "order-2", string(msgs[1].Key))
	assert.Empty(t, msgs[0].Topic, "the producer picks the topic")
	assert.Equal(t, "OrderCreated", tracing.HeaderValue(msgs[0].Headers, HeaderEventType))
	assert.NotEmpty(t, tracing.HeaderValue(msgs[0].Headers, tracing.TraceparentHeader))
}

func TestMarkFailedRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	store := NewDocStore(discard(), docstore.NewMemory())
	id, err := store.Record(ctx, Event{AggregateID: "o1", Type: "OrderCreated"})
	require.NoError(t, err)

	for i := 1; i <= MaxRetries; i++ {
		batch, err := store.LockBatch(ctx, "r1", 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, batch, 1, "attempt %d", i)
		require.NoError(t, store.MarkFailed(ctx, id, "boom"))
	}

	e, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, MaxRetries, e.RetryCount)
	require.NotNil(t, e.LastError)
	assert.Equal(t, "boom", *e.LastError)

	batch, err := store.LockBatch(ctx, "r1", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestLockBatchClaimsOnceAndReleasesExpiredLeases(t *testing.T) {
	ctx := context.Background()
	store := NewDocStore(discard(), docstore.NewMemory())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err := store.Record(ctx, Event{AggregateID: "o1", Type: "OrderCreated"})
	require.NoError(t, err)

	first, err := store.LockBatch(ctx, "r1", 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, StatusInProgress, first[0].Status)

	second, err := store.LockBatch(ctx, "r2", 10, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, second)

	now = now.Add(10 * time.Second)
	third, err := store.LockBatch(ctx, "r2", 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "r2", third[0].RelayID)

	require.NoError(t, store.MarkSent(ctx, []string{third[0].ID}))
	n, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Error(t, store.MarkSent(ctx, []string{"missing"}))
}

func TestMessageCarriesEventIdentity(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := Message(Event{
		ID:            "evt-1",
		AggregateType: "order",
		AggregateID:   "o-9",
		Type:          "OrderPaymentUpdated",
		Payload:       []byte(`{}`),
		Headers:       map[string]string{"z": "last", "a": "first"},
		CreatedAt:     created,
	})

	assert.Equal(t, "o-9", string(msg.Key))
	assert.Equal(t, created, msg.Time)
	require.Len(t, msg.Headers, 5)
	assert.Equal(t, "a", msg.Headers[0].Key)
	assert.Equal(t, "z", msg.Headers[1].Key)
	assert.Equal(t, "evt-1", tracing.HeaderValue(msg.Headers, HeaderEventID))
	assert.Equal(t, "order", tracing.HeaderValue(msg.Headers, HeaderAggregateType))
	assert.Empty(t, tracing.HeaderValue(msg.Headers, tracing.TraceparentHeader))
}

// slowProducer takes delay per write and gives up when ctx ends first.
type slowProducer struct {
	fakeProducer
	delay time.Duration
}

func (p *slowProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	select {
	case <-time.After(p.delay):
		return p.fakeProducer.WriteMessages(ctx, msgs...)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRelaysNeverPublishAnEventTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := discard()
	store := NewDocStore(log, docstore.NewMemory())
	producer := &slowProducer{delay: 30 * time.Millisecond}

	const n = 6
	for i := 0; i < n; i++ {
		_, err := store.Record(ctx, Event{AggregateType: "order", AggregateID: fmt.Sprintf("o-%d", i), Type: "OrderCreated"})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, id := range []string{"relay-a", "relay-b"} {
		relay := NewRelay(log, store, NewDispatcher(log, producer), id,
			WithInterval(10*time.Millisecond), WithLease(100*time.Millisecond))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = relay.Run(ctx)
		}()
	}

	require.Eventually(t, func() bool {
		pending, err := store.Pending(context.Background())
		return err == nil && pending == 0 && len(producer.sent()) == n
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	seen := map[string]int{}
	for _, m := range producer.sent() {
		seen[tracing.HeaderValue(m.Headers, HeaderEventID)]++
	}
	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
}

func TestReleaseOnlyTouchesOwnClaims(t *testing.T) {
	ctx := context.Background()
	store := NewDocStore(discard(), docstore.NewMemory())
	id, err := store.Record(ctx, Event{AggregateID: "o1", Type: "OrderCreated"})
	require.NoError(t, err)

	_, err = store.LockBatch(ctx, "r1", 10, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "r2", []string{id}))
	e, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, e.Status)

	require.NoError(t, store.Release(ctx, "r1", []string{id}))
	e, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.Zero(t, e.RetryCount)
	assert.Nil(t, e.LeaseUntil)
}
