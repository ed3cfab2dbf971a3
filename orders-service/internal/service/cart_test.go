package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCartService(t *testing.T) (*CartServiceImpl, *MockStore, *MockCartCache) {
	t.Helper()
	store := NewMockStore()
	c := NewMockCartCache()
	seedShop(store)
	return NewCartService(store, c, zaptest.NewLogger(t)), store, c
}

func TestGetCart_MissThenHit(t *testing.T) {
	svc, store, c := newTestCartService(t)
	store.PutInCart(1, 1, 1)
	store.PutInCart(1, 2, 3)

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
	assert.Equal(t, int64(2100), cart.Total)

	// the miss read plus the re-check after the Set
	assert.Eventually(t, func() bool { return c.Cached(1) && store.CartReads() == 2 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, c.DeletedCount(), "an unchanged cart stays cached")

	store.FailOn["CartLines"] = true
	cached, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err, "second read must come from the cache")
	assert.Equal(t, cart.Total, cached.Total)
}

func TestGetCart_CheckoutDuringFillDoesNotRecacheStaleCart(t *testing.T) {
	svc, store, c := newTestCartService(t)
	store.PutInCart(1, 1, 1)

	// checkout commits and invalidates after the miss read the lines but before the Set lands
	c.BeforeSet = func(userID int64) {
		c.BeforeSet = nil
		assert.NoError(t, store.DeleteCartLine(context.Background(), userID, 1))
		assert.NoError(t, c.Delete(context.Background(), userID))
	}

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)

	assert.Eventually(t, func() bool { return c.DeletedCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.False(t, c.Cached(1))

	fresh, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, fresh.Lines)
}

func TestGetCart_CacheErrorFallsBackToStore(t *testing.T) {
	svc, store, c := newTestCartService(t)
	store.PutInCart(1, 1, 2)
	c.GetErr = errors.New("redis down")

	cart, err := svc.GetCart(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(2400), cart.Total)
}

func TestGetCart_StoreError(t *testing.T) {
	svc, store, _ := newTestCartService(t)
	store.FailOn["CartLines"] = true

	_, err := svc.GetCart(context.Background(), 1)

	assert.ErrorIs(t, err, errInjected)
}

func TestAddItem(t *testing.T) {
	svc, store, c := newTestCartService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, 1, 1, 2))
	require.NoError(t, svc.AddItem(ctx, 1, 1, 3))

	lines, err := store.CartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 2, c.DeletedCount())
}

func TestAddItem_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		userID    int64
		productID int64
		quantity  int
		wantErr   error
	}{
		{"zero quantity", 1, 1, 0, domain.ErrBusinessValidation},
		{"above limit", 1, 1, domain.MaxCartQuantity + 1, domain.ErrBusinessValidation},
		{"unknown user", 42, 1, 1, domain.ErrUserNotFound},
		{"unknown product", 1, 77, 1, domain.ErrProductNotFound},
		{"more than in stock", 1, 1, 6, domain.ErrStockNotEnough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, c := newTestCartService(t)

			err := svc.AddItem(context.Background(), tt.userID, tt.productID, tt.quantity)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.CartSize(tt.userID))
			assert.Equal(t, 0, c.DeletedCount())
		})
	}
}

func TestAddItem_CountsExistingLine(t *testing.T) {
	svc, store, _ := newTestCartService(t)
	store.PutInCart(1, 1, 4)

	err := svc.AddItem(context.Background(), 1, 1, 2)

	assert.ErrorIs(t, err, domain.ErrStockNotEnough)
}

func TestUpdateQuantity(t *testing.T) {
	svc, store, _ := newTestCartService(t)
	store.PutInCart(1, 2, 1)
	ctx := context.Background()

	require.NoError(t, svc.UpdateQuantity(ctx, 1, 2, 7))
	lines, err := store.CartLines(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, lines[0].Quantity)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 1, 2, 11), domain.ErrStockNotEnough)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 1, 1, 1), domain.ErrNotFound)

	require.NoError(t, svc.UpdateQuantity(ctx, 1, 2, 0))
	assert.Equal(t, 0, store.CartSize(1))
}

func TestRemoveItem(t *testing.T) {
	svc, store, c := newTestCartService(t)
	store.PutInCart(1, 1, 1)
	ctx := context.Background()

	require.NoError(t, svc.RemoveItem(ctx, 1, 1))
	assert.Equal(t, 0, store.CartSize(1))
	assert.Equal(t, []int64{1}, c.Deleted)

	assert.ErrorIs(t, svc.RemoveItem(ctx, 1, 1), domain.ErrNotFound)
}
