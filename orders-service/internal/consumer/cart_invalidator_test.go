package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func orderMessage(t *testing.T, offset int64, eventType string, userID int64) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(domain.OrderEvent{OrderID: offset, UserID: userID, Status: domain.OrderStatusCreated})
	require.NoError(t, err)
	return kafka.Message{
		Offset:  offset,
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisCache(client), mr
}

func TestCartInvalidator_DropsCartOnOrderCreated(t *testing.T) {
	carts, _ := setupCache(t)
	ctx := context.Background()
	require.NoError(t, carts.Set(ctx, 7, domain.NewCart(7, nil)))
	require.NoError(t, carts.Set(ctx, 8, domain.NewCart(8, nil)))

	reader := &fakeReader{pending: []kafka.Message{
		orderMessage(t, 1, domain.EventOrderCreated, 7),
		orderMessage(t, 2, domain.EventOrderCancelled, 8),
	}}
	inv := NewCartInvalidator(reader, carts, zaptest.NewLogger(t))

	inv.processMessage(ctx)
	inv.processMessage(ctx)

	_, err := carts.Get(ctx, 7)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = carts.Get(ctx, 8)
	assert.NoError(t, err, "only order.created clears the cart")
	assert.Equal(t, []int64{1, 2}, reader.Committed())
}

func TestCartInvalidator_MalformedPayloadIsCommitted(t *testing.T) {
	carts, _ := setupCache(t)
	reader := &fakeReader{pending: []kafka.Message{{
		Offset:  5,
		Value:   []byte("{not json"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(domain.EventOrderCreated)}},
	}}}
	inv := NewCartInvalidator(reader, carts, zaptest.NewLogger(t))

	inv.processMessage(context.Background())

	assert.Equal(t, []int64{5}, reader.Committed())
}

func TestCartInvalidator_CacheFailureLeavesOffsetOnShutdown(t *testing.T) {
	carts, mr := setupCache(t)
	mr.Close()
	reader := &fakeReader{pending: []kafka.Message{orderMessage(t, 9, domain.EventOrderCreated, 7)}}
	inv := NewCartInvalidator(reader, carts, zaptest.NewLogger(t))
	inv.minBackoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	inv.processMessage(ctx)

	assert.Empty(t, reader.Committed())
}

type flakyCache struct {
	cache.CartCache
	mu       sync.Mutex
	failures int
	deletes  []int64
}

func (f *flakyCache) Delete(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("redis down")
	}
	f.deletes = append(f.deletes, userID)
	return nil
}

func TestCartInvalidator_RetriesBeforeMovingOn(t *testing.T) {
	carts := &flakyCache{failures: 3}
	reader := &fakeReader{pending: []kafka.Message{
		orderMessage(t, 1, domain.EventOrderCreated, 7),
		orderMessage(t, 2, domain.EventOrderCreated, 8),
	}}
	inv := NewCartInvalidator(reader, carts, zaptest.NewLogger(t))
	inv.minBackoff = time.Millisecond
	inv.maxBackoff = 2 * time.Millisecond

	inv.processMessage(context.Background())

	assert.Equal(t, []int64{7}, carts.deletes)
	assert.Equal(t, []int64{1}, reader.Committed(), "the next message is not fetched until the first is done")

	inv.processMessage(context.Background())
	assert.Equal(t, []int64{7, 8}, carts.deletes)
	assert.Equal(t, []int64{1, 2}, reader.Committed())
}

func TestCartInvalidator_RunStopsWithContext(t *testing.T) {
	carts, _ := setupCache(t)
	reader := &fakeReader{pending: []kafka.Message{orderMessage(t, 1, domain.EventOrderCreated, 7)}}
	inv := NewCartInvalidator(reader, carts, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		inv.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalidator did not stop")
	}

	inv.Close()
	assert.True(t, reader.closed)
}
