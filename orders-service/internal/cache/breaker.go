package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerCache stops calling a failing cache for a while so cart reads go straight to the store.
type BreakerCache struct {
	next  CartCache
	reads *gobreaker.CircuitBreaker[*domain.Cart]
	write *gobreaker.CircuitBreaker[struct{}]
}

var _ CartCache = (*BreakerCache)(nil)

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

func NewBreakerCache(next CartCache, s BreakerSettings, log *zap.Logger) *BreakerCache {
	log = logger.Component(log, "cart_cache")
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrCacheMiss)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("cart cache breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}
	}

	return &BreakerCache{
		next:  next,
		reads: gobreaker.NewCircuitBreaker[*domain.Cart](settings("cart-cache-read")),
		write: gobreaker.NewCircuitBreaker[struct{}](settings("cart-cache-write")),
	}
}

func (b *BreakerCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	return b.reads.Execute(func() (*domain.Cart, error) {
		return b.next.Get(ctx, userID)
	})
}

func (b *BreakerCache) Set(ctx context.Context, userID int64, cart *domain.Cart) error {
	_, err := b.write.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Set(ctx, userID, cart)
	})
	return err
}

// Delete bypasses the breaker. A skipped invalidation would leave a stale cart behind.
func (b *BreakerCache) Delete(ctx context.Context, userID int64) error {
	return b.next.Delete(ctx, userID)
}
