package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound            = errors.New("order not found")
	ErrShipmentNotFound         = errors.New("shipment not found")
	ErrProductNotFound          = errors.New("product not found")
	ErrCartLineNotFound         = errors.New("cart line not found")
	ErrDuplicateMerchantTradeNo = errors.New("merchant trade number already in use")
	ErrCartChanged              = errors.New("cart changed during checkout")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// StockLedger is the only code path that changes products.stock.
type StockLedger interface {
	// Reserve decrements stock by quantity only if enough is on hand and reports whether it did.
	Reserve(ctx context.Context, productID int64, quantity int) (bool, error)
	// Release adds quantity back unconditionally.
	Release(ctx context.Context, productID int64, quantity int) error
}

// Tx is the set of operations available inside one database transaction.
type Tx interface {
	StockLedger

	UserExists(ctx context.Context, userID int64) (bool, error)
	LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	ClearCart(ctx context.Context, userID int64, lineIDs []int64) error

	InsertOrder(ctx context.Context, order *domain.Order) (int64, error)
	InsertOrderItems(ctx context.Context, orderID int64, items []domain.OrderItem) error
	InsertShipment(ctx context.Context, orderID int64, status domain.ShipmentStatus) error

	OrderReader

	CompareAndSetOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error)
	CompareAndSetShipmentStatus(ctx context.Context, orderID int64, from, to domain.ShipmentStatus) (bool, error)
	SetMerchantTradeNo(ctx context.Context, orderID int64, merchantTradeNo string) error
	ApplyPayment(ctx context.Context, orderID int64, update PaymentUpdate) (bool, error)

	EnqueueEvent(ctx context.Context, event *OutboxEvent) error
}

type OrderReader interface {
	OrderByID(ctx context.Context, orderID int64) (*domain.Order, error)
	// OrderForUser returns ErrOrderNotFound both when the order is missing and when userID does not own it.
	OrderForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	OrderByMerchantTradeNo(ctx context.Context, merchantTradeNo string) (*domain.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	ShipmentByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error)
}

type Store interface {
	// InTx runs fn in a read-committed transaction, committing only if fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	OrderReader
	OrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	Product(ctx context.Context, productID int64) (*domain.Product, error)
	CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	AddCartQuantity(ctx context.Context, userID, productID int64, delta int) (int, error)
	SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) error
	DeleteCartLine(ctx context.Context, userID, productID int64) error

	OutboxStore

	Ping(ctx context.Context) error
	RunMigrations(*Credentials) error
	Close() error
}

type OutboxStore interface {
	UnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id int64) error
}

// PaymentUpdate is applied only while the order still has the expected statuses.
type PaymentUpdate struct {
	ExpectedStatus        domain.OrderStatus
	ExpectedPaymentStatus domain.PaymentStatus

	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	// MerchantTradeNo, when set, replaces the current trade number with the one that was settled.
	MerchantTradeNo *string
	Method          *string
	GatewayTradeNo  *string
	ReturnCode      *string
	ReturnMessage   *string
	ConfirmedAt     *time.Time
}

type OutboxEvent struct {
	ID          int64
	EventID     uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
