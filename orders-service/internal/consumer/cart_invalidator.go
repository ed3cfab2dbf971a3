package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader used here.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartInvalidator drops the cached cart of every buyer whose checkout produced an
// order.created event. Checkout already invalidates inline; this covers the case
// where that call failed and keeps other instances' view consistent.
type CartInvalidator struct {
	reader MessageReader
	carts  cache.CartCache
	log    *zap.Logger

	// first and longest wait between attempts to invalidate one cart
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewKafkaReader(topic string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "orders-cart-cache",
		MaxBytes: 10e6, // 10MB
	})
}

func NewCartInvalidator(reader MessageReader, carts cache.CartCache, log *zap.Logger) *CartInvalidator {
	return &CartInvalidator{
		reader:     reader,
		carts:      carts,
		log:        logger.Component(log, "cart_invalidator"),
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

func (c *CartInvalidator) Run(ctx context.Context) {
	for ctx.Err() == nil {
		c.processMessage(ctx)
	}
}

func (c *CartInvalidator) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *CartInvalidator) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn("error reading message", zap.Error(err))
		}
		return
	}

	if eventType(m) == domain.EventOrderCreated {
		var event domain.OrderEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			c.log.Warn("skipping malformed order event", zap.Int64("offset", m.Offset), zap.Error(err))
		} else if !c.invalidate(ctx, event.UserID) {
			// shutting down; the offset stays uncommitted for the next owner of the partition
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Warn("failed to commit offset", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// invalidate retries the delete in place until it succeeds or ctx ends. Moving on would let
// a later commit cover this offset and lose the invalidation.
func (c *CartInvalidator) invalidate(ctx context.Context, userID int64) bool {
	backoff := c.minBackoff
	for {
		err := c.carts.Delete(ctx, userID)
		if err == nil {
			return true
		}
		c.log.Warn("failed to invalidate cart cache, retrying",
			zap.Int64("user_id", userID), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
