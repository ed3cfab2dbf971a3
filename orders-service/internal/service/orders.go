package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CancelOrder restocks every line and marks the order CANCELLED in one transaction. No refund is issued.
func (s *OrderServiceImpl) CancelOrder(ctx context.Context, orderID, userID int64) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder",
		trace.WithAttributes(attribute.Int64("order.id", orderID), attribute.Int64("user.id", userID)))
	defer func() { endSpan(span, err) }()

	var cancelled *domain.Order
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		o, shipment, err := s.guard.ValidateOwnership(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		if err := s.guard.EnsureModifiable(o, shipment); err != nil {
			return err
		}

		// the status swap is what serializes competing cancellations
		ok, err := tx.CompareAndSetOrderStatus(ctx, o.ID, o.Status, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentOrderEdit
		}

		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.Release(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		o.Status = domain.OrderStatusCancelled
		o.Items = items
		if err := enqueueOrderEvent(ctx, tx, domain.EventOrderCancelled, o, s.now()); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		s.metrics.Cancellations.WithLabelValues("rejected").Inc()
		logger.WithTrace(ctx, s.log).Info("cancellation rejected", zap.Int64("order_id", orderID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.metrics.Cancellations.WithLabelValues("success").Inc()
	logger.WithTrace(ctx, s.log).Info("order cancelled", zap.Int64("order_id", orderID), zap.Int("lines_restocked", len(cancelled.Items)))
	return cancelled, nil
}

// ReturnOrder validates a return request. The refund and restock policy for returns is undecided,
// so a valid request ends in NotImplemented without touching state.
func (s *OrderServiceImpl) ReturnOrder(ctx context.Context, orderID, userID int64) error {
	o, shipment, err := s.guard.ValidateOwnership(ctx, s.store, orderID, userID)
	if err != nil {
		return err
	}
	if err := s.guard.EnsureReturnable(o, shipment); err != nil {
		return err
	}
	return domain.NotImplemented("order returns are not supported yet")
}

func (s *OrderServiceImpl) GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	o, err := s.store.OrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, translate(err)
	}
	items, err := s.store.OrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *OrderServiceImpl) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.store.OrdersByUser(ctx, userID)
}

func (s *OrderServiceImpl) OrderItems(ctx context.Context, orderID, userID int64) ([]domain.OrderItem, error) {
	if _, err := s.store.OrderForUser(ctx, orderID, userID); err != nil {
		return nil, translate(err)
	}
	return s.store.OrderItems(ctx, orderID)
}

// AdvanceShipment moves a shipment exactly one step forward. Cancelled and returned orders never ship.
func (s *OrderServiceImpl) AdvanceShipment(ctx context.Context, orderID int64, to domain.ShipmentStatus) (*domain.Shipment, error) {
	if !to.Valid() {
		return nil, domain.BusinessValidation(fmt.Sprintf("unknown shipment status %q", to))
	}

	var shipment *domain.Shipment
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.OrderByID(ctx, orderID)
		if err != nil {
			return translate(err)
		}
		if o.Status == domain.OrderStatusCancelled || o.Status == domain.OrderStatusReturned {
			return domain.BusinessValidation(fmt.Sprintf("order in status %s cannot be shipped", o.Status))
		}

		current, err := tx.ShipmentByOrderID(ctx, orderID)
		if err != nil {
			return translate(err)
		}
		if !current.Status.CanAdvanceTo(to) {
			return domain.BusinessValidation(fmt.Sprintf("shipment cannot move from %s to %s", current.Status, to))
		}

		ok, err := tx.CompareAndSetShipmentStatus(ctx, orderID, current.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentOrderEdit
		}
		current.Status = to
		shipment = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("shipment advanced", zap.Int64("order_id", orderID), zap.String("status", to.String()))
	return shipment, nil
}
