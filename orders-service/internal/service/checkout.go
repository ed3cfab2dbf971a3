package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	UserID        int64
	Delivery      domain.DeliverySelection
	PaymentMethod string
}

// Checkout turns the caller's cart into a CREATED order in one transaction.
// Stock for every line is reserved or none is: the first short line aborts with StockNotEnough.
func (s *OrderServiceImpl) Checkout(ctx context.Context, request *CheckoutRequest) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Checkout",
		trace.WithAttributes(attribute.Int64("user.id", request.UserID)))
	defer func() { endSpan(span, err) }()

	if err := request.Delivery.Validate(); err != nil {
		s.metrics.Checkouts.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var order *domain.Order
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := s.placeOrder(ctx, tx, request)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.metrics.Checkouts.WithLabelValues(checkoutOutcome(err)).Inc()
		logger.WithTrace(ctx, s.log).Info("checkout rejected", zap.Int64("user_id", request.UserID), zap.Error(err))
		return nil, err
	}

	s.invalidateCart(request.UserID)
	s.metrics.Checkouts.WithLabelValues("success").Inc()
	logger.WithTrace(ctx, s.log).Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int("lines", len(order.Items)))
	return order, nil
}

func (s *OrderServiceImpl) placeOrder(ctx context.Context, tx repository.Tx, request *CheckoutRequest) (*domain.Order, error) {
	exists, err := tx.UserExists(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	lines, err := tx.LockCartLines(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	now := s.now()
	order := newPendingOrder(request, lines, now)
	id, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	// fixed lock order across concurrent checkouts
	lines = slices.Clone(lines)
	slices.SortFunc(lines, func(a, b domain.CartLine) int { return cmp.Compare(a.ProductID, b.ProductID) })

	for _, line := range lines {
		ok, err := tx.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.StockNotEnough(line.Name)
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			OrderID:     id,
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    decimal.Zero,
		})
	}
	if err := tx.InsertOrderItems(ctx, id, items); err != nil {
		return nil, err
	}
	if err := tx.InsertShipment(ctx, id, domain.ShipmentStatusPending); err != nil {
		return nil, err
	}
	lineIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		lineIDs = append(lineIDs, line.ID)
	}
	if err := tx.ClearCart(ctx, request.UserID, lineIDs); err != nil {
		return nil, err
	}

	ok, err := tx.CompareAndSetOrderStatus(ctx, id, domain.OrderStatusPending, domain.OrderStatusCreated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d left %s before creation finished", id, domain.OrderStatusPending)
	}
	order.Status = domain.OrderStatusCreated
	order.Items = items

	if err := enqueueOrderEvent(ctx, tx, domain.EventOrderCreated, order, now); err != nil {
		return nil, err
	}
	return order, nil
}

func newPendingOrder(request *CheckoutRequest, lines []domain.CartLine, now time.Time) *domain.Order {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}

	method := request.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	address, logistics := request.Delivery.Freeze()
	return &domain.Order{
		UserID:          request.UserID,
		OrderDate:       now,
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		ShippingAddress: address,
		Logistics:       logistics,
		Payment:         domain.Payment{Method: method, Status: domain.PaymentStatusPending},
		UpdatedAt:       now,
	}
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrStockNotEnough):
		return "stock_not_enough"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrNotFound):
		return "user_not_found"
	}
	return "error"
}
