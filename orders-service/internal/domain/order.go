package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusReturned  OrderStatus = "RETURNED"
	OrderStatusComplete  OrderStatus = "COMPLETE"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusCreated},
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusComplete, OrderStatusCancelled, OrderStatusReturned},
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned || s == OrderStatusComplete
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsModifiable reports whether the caller may still cancel or return the order.
func (s OrderStatus) IsModifiable() bool {
	return s == OrderStatusCreated || s == OrderStatusPaid
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCreated, OrderStatusPaid,
		OrderStatusCancelled, OrderStatusReturned, OrderStatusComplete:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

const (
	LogisticsTypeHome = "HOME"
	LogisticsTypeCVS  = "CVS"

	// HomeSubType is the carrier used for every home delivery.
	HomeSubType = "TCAT"
)

// Logistics is the delivery data frozen on the order at checkout.
type Logistics struct {
	Type         string  `json:"logistics_type"`
	SubType      string  `json:"logistics_sub_type"`
	StoreID      *string `json:"store_id,omitempty"`
	StoreName    *string `json:"store_name,omitempty"`
	StoreAddress *string `json:"store_address,omitempty"`
}

// Payment is the payment sub-record of an order. Gateway fields stay nil until a callback arrives.
type Payment struct {
	Method          string        `json:"payment_method"`
	Status          PaymentStatus `json:"payment_status"`
	MerchantTradeNo *string       `json:"merchant_trade_no,omitempty"`
	GatewayTradeNo  *string       `json:"gateway_trade_no,omitempty"`
	ReturnCode      *string       `json:"return_code,omitempty"`
	ReturnMessage   *string       `json:"return_message,omitempty"`
	ConfirmedAt     *time.Time    `json:"confirmed_at,omitempty"`
}

type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	OrderDate       time.Time   `json:"order_date"`
	TotalAmount     int64       `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address"`
	Logistics       Logistics   `json:"logistics"`
	Payment         Payment     `json:"payment"`
	Items           []OrderItem `json:"items,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a cart line taken at checkout.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}
