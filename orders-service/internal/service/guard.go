package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
)

// OrderLifecycleGuard holds the ownership and state checks shared by cancel, return and payment.
type OrderLifecycleGuard struct{}

// ValidateOwnership loads the order and its shipment. A foreign order is reported exactly like a missing one.
func (OrderLifecycleGuard) ValidateOwnership(ctx context.Context, r repository.OrderReader, orderID, userID int64) (*domain.Order, *domain.Shipment, error) {
	o, err := r.OrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, nil, translate(err)
	}
	s, err := r.ShipmentByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, translate(err)
	}
	return o, s, nil
}

func (OrderLifecycleGuard) EnsureModifiable(o *domain.Order, s *domain.Shipment) error {
	if !o.Status.IsModifiable() {
		return domain.BusinessValidation(fmt.Sprintf("order in status %s can no longer be changed", o.Status))
	}
	if s.Status.IsShipped() {
		return domain.BusinessValidation("order has already shipped and can no longer be cancelled")
	}
	return nil
}

func (OrderLifecycleGuard) EnsureReturnable(o *domain.Order, s *domain.Shipment) error {
	if !o.Status.IsModifiable() {
		return domain.BusinessValidation(fmt.Sprintf("order in status %s can no longer be changed", o.Status))
	}
	if !s.Status.IsShipped() {
		return domain.BusinessValidation("order has not shipped yet, cancel it instead")
	}
	return nil
}
