package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/cache"
	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/metrics"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fjod/go_shop/orders-service/internal/service")

const defaultPaymentMethod = "ECPAY"

type OrderService interface {
	Checkout(ctx context.Context, request *CheckoutRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	ReturnOrder(ctx context.Context, orderID, userID int64) error
	GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	OrderItems(ctx context.Context, orderID, userID int64) ([]domain.OrderItem, error)
	AdvanceShipment(ctx context.Context, orderID int64, to domain.ShipmentStatus) (*domain.Shipment, error)
}

type OrderServiceImpl struct {
	store   repository.Store
	carts   cache.CartCache
	guard   OrderLifecycleGuard
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

var _ OrderService = (*OrderServiceImpl)(nil)

func NewOrderService(store repository.Store, carts cache.CartCache, m *metrics.Metrics, log *zap.Logger) *OrderServiceImpl {
	return &OrderServiceImpl{
		store:   store,
		carts:   carts,
		metrics: m,
		log:     logger.Component(log, "order_service"),
		now:     time.Now,
	}
}

func (s *OrderServiceImpl) invalidateCart(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.log.Warn("cart cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func enqueueOrderEvent(ctx context.Context, tx repository.Tx, eventType string, o *domain.Order, at time.Time) error {
	payload, err := json.Marshal(domain.NewOrderEvent(o, at))
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, &repository.OutboxEvent{
		EventID:     uuid.New(),
		AggregateID: strconv.FormatInt(o.ID, 10),
		EventType:   eventType,
		Payload:     payload,
	})
}

// translate maps storage sentinels onto the domain taxonomy; anything else passes through.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return domain.ErrOrderNotFound
	case errors.Is(err, repository.ErrShipmentNotFound):
		return domain.ErrShipmentNotFound
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.ErrProductNotFound
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
