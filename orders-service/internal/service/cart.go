package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, productID int64) error
}

type CartServiceImpl struct {
	store repository.Store
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
	log   *zap.Logger
}

var _ CartService = (*CartServiceImpl)(nil)

var errCartLineNotFound = domain.NotFound("cart item not found")

func NewCartService(store repository.Store, c cache.CartCache, log *zap.Logger) *CartServiceImpl {
	return &CartServiceImpl{
		store: store,
		cache: c,
		log:   logger.Component(log, "cart_service"),
	}
}

func (s *CartServiceImpl) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.Int64("user_id", userID), zap.Error(err))
		}

		lines, err := s.store.CartLines(ctx, userID)
		if err != nil {
			return nil, err
		}
		cart = domain.NewCart(userID, lines)

		go s.fill(userID, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddItem adds quantity to the cart line. Stock is only checked here, not reserved.
func (s *CartServiceImpl) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 || quantity > domain.MaxCartQuantity {
		return domain.BusinessValidation(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxCartQuantity))
	}

	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}

	p, err := s.store.Product(ctx, productID)
	if err != nil {
		return translate(err)
	}

	lines, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return err
	}
	wanted := quantity
	for _, l := range lines {
		if l.ProductID == productID {
			wanted += l.Quantity
		}
	}
	if wanted > domain.MaxCartQuantity {
		return domain.BusinessValidation(fmt.Sprintf("at most %d of one product per cart", domain.MaxCartQuantity))
	}
	if p.Stock < wanted {
		return domain.StockNotEnough(p.Name)
	}

	if _, err := s.store.AddCartQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (s *CartServiceImpl) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	if quantity > domain.MaxCartQuantity {
		return domain.BusinessValidation(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxCartQuantity))
	}

	p, err := s.store.Product(ctx, productID)
	if err != nil {
		return translate(err)
	}
	if p.Stock < quantity {
		return domain.StockNotEnough(p.Name)
	}

	err = s.store.SetCartQuantity(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrCartLineNotFound) {
		return errCartLineNotFound
	}
	if err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CartServiceImpl) RemoveItem(ctx context.Context, userID, productID int64) error {
	err := s.store.DeleteCartLine(ctx, userID, productID)
	if errors.Is(err, repository.ErrCartLineNotFound) {
		return errCartLineNotFound
	}
	if err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

// fill caches a cart read from the store. Writers commit and then delete the key, so a Set landing
// after such a delete would resurrect a stale cart; re-reading the lines after the Set catches it.
func (s *CartServiceImpl) fill(userID int64, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.log.Warn("cache set error", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	lines, err := s.store.CartLines(ctx, userID)
	if err == nil && sameLines(lines, cart.Lines) {
		return
	}
	s.log.Debug("cart changed while caching, dropping entry", zap.Int64("user_id", userID))
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func sameLines(a, b []domain.CartLine) bool {
	return slices.EqualFunc(a, b, func(x, y domain.CartLine) bool {
		return x.ID == y.ID && x.ProductID == y.ProductID && x.Quantity == y.Quantity && x.UnitPrice == y.UnitPrice
	})
}

func (s *CartServiceImpl) invalidate(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", zap.Int64("user_id", userID), zap.Error(err))
	}
}
