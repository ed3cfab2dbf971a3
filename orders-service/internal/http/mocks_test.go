package http

import (
	"context"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/payment"
	"github.com/fjod/go_shop/orders-service/internal/service"
)

type OrderServiceMock struct {
	order    *domain.Order
	orders   []*domain.Order
	items    []domain.OrderItem
	shipment *domain.Shipment
	err      error

	gotCheckout *service.CheckoutRequest
	gotOrderID  int64
	gotUserID   int64
	gotStatus   domain.ShipmentStatus
}

var _ service.OrderService = (*OrderServiceMock)(nil)

func (m *OrderServiceMock) Checkout(_ context.Context, request *service.CheckoutRequest) (*domain.Order, error) {
	m.gotCheckout = request
	return m.order, m.err
}

func (m *OrderServiceMock) CancelOrder(_ context.Context, orderID, userID int64) (*domain.Order, error) {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.order, m.err
}

func (m *OrderServiceMock) ReturnOrder(_ context.Context, orderID, userID int64) error {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.err
}

func (m *OrderServiceMock) GetOrder(_ context.Context, orderID, userID int64) (*domain.Order, error) {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.order, m.err
}

func (m *OrderServiceMock) ListOrders(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.gotUserID = userID
	return m.orders, m.err
}

func (m *OrderServiceMock) OrderItems(_ context.Context, orderID, userID int64) ([]domain.OrderItem, error) {
	m.gotOrderID, m.gotUserID = orderID, userID
	return m.items, m.err
}

func (m *OrderServiceMock) AdvanceShipment(_ context.Context, orderID int64, to domain.ShipmentStatus) (*domain.Shipment, error) {
	m.gotOrderID, m.gotStatus = orderID, to
	return m.shipment, m.err
}

type CartServiceMock struct {
	cart   *domain.Cart
	err    error
	getErr error

	gotProductID int64
	gotQuantity  int
	removed      bool
}

var _ service.CartService = (*CartServiceMock)(nil)

func (m *CartServiceMock) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return domain.NewCart(userID, nil), nil
	}
	return m.cart, nil
}

func (m *CartServiceMock) AddItem(_ context.Context, _, productID int64, quantity int) error {
	m.gotProductID, m.gotQuantity = productID, quantity
	return m.err
}

func (m *CartServiceMock) UpdateQuantity(_ context.Context, _, productID int64, quantity int) error {
	m.gotProductID, m.gotQuantity = productID, quantity
	return m.err
}

func (m *CartServiceMock) RemoveItem(_ context.Context, _, productID int64) error {
	m.gotProductID, m.removed = productID, true
	return m.err
}

type PaymentServiceMock struct {
	form *payment.Form
	err  error

	gotProvider string
	gotParams   map[string]string
}

var _ service.PaymentService = (*PaymentServiceMock)(nil)

func (m *PaymentServiceMock) PrepareCheckout(_ context.Context, provider string, _, _ int64) (*payment.Form, error) {
	m.gotProvider = provider
	return m.form, m.err
}

func (m *PaymentServiceMock) HandleCallback(_ context.Context, provider string, params map[string]string) error {
	m.gotProvider, m.gotParams = provider, params
	return m.err
}

type MapFormerMock struct {
	form       *payment.Form
	err        error
	gotSubType string
}

func (m *MapFormerMock) MapForm(subType string, _ time.Time) (*payment.Form, error) {
	m.gotSubType = subType
	return m.form, m.err
}
