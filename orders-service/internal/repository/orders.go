package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/orders-service/internal/domain"
)

const orderColumns = `id, user_id, order_date, total_amount, status, shipping_address,
	logistics_type, logistics_sub_type, store_id, store_name, store_address,
	payment_method, payment_status, merchant_trade_no, gateway_trade_no,
	gateway_rtn_code, gateway_rtn_msg, payment_confirmed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderDate, &o.TotalAmount, &o.Status, &o.ShippingAddress,
		&o.Logistics.Type, &o.Logistics.SubType, &o.Logistics.StoreID, &o.Logistics.StoreName, &o.Logistics.StoreAddress,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.MerchantTradeNo, &o.Payment.GatewayTradeNo,
		&o.Payment.ReturnCode, &o.Payment.ReturnMessage, &o.Payment.ConfirmedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (q queries) InsertOrder(ctx context.Context, o *domain.Order) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, order_date, total_amount, status, shipping_address,
			logistics_type, logistics_sub_type, store_id, store_name, store_address,
			payment_method, payment_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id`,
		o.UserID, o.OrderDate, o.TotalAmount, o.Status, o.ShippingAddress,
		o.Logistics.Type, o.Logistics.SubType, o.Logistics.StoreID, o.Logistics.StoreName, o.Logistics.StoreAddress,
		o.Payment.Method, o.Payment.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	return id, nil
}

func (q queries) InsertOrderItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	for _, item := range items {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, discount)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Discount)
		if err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func (q queries) InsertShipment(ctx context.Context, orderID int64, status domain.ShipmentStatus) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO shipments (order_id, status) VALUES ($1, $2)`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

func (q queries) queryOrder(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (q queries) OrderByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	return q.queryOrder(ctx, `id = $1`, orderID)
}

// OrderForUser returns ErrOrderNotFound both for a missing order and for one owned by someone else.
func (q queries) OrderForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	return q.queryOrder(ctx, `id = $1 AND user_id = $2`, orderID, userID)
}

// OrderByMerchantTradeNo finds the order by any trade number ever issued for it, not only the latest.
func (q queries) OrderByMerchantTradeNo(ctx context.Context, merchantTradeNo string) (*domain.Order, error) {
	return q.queryOrder(ctx,
		`id = (SELECT order_id FROM payment_attempts WHERE merchant_trade_no = $1)`, merchantTradeNo)
}

func (q queries) OrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY order_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (q queries) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, discount
		FROM order_items WHERE order_id = $1 ORDER BY product_id, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Discount); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return items, nil
}

func (q queries) ShipmentByOrderID(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	var s domain.Shipment
	err := q.db.QueryRowContext(ctx,
		`SELECT id, order_id, status, updated_at FROM shipments WHERE order_id = $1`, orderID).
		Scan(&s.ID, &s.OrderID, &s.Status, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return &s, nil
}

func (q queries) CompareAndSetOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return affectedOne(res)
}

func (q queries) CompareAndSetShipmentStatus(ctx context.Context, orderID int64, from, to domain.ShipmentStatus) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE shipments SET status = $1, updated_at = NOW() WHERE order_id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update shipment status: %w", err)
	}
	return affectedOne(res)
}

// SetMerchantTradeNo records a newly issued trade number and makes it the order's current one.
// Earlier numbers stay resolvable so a late callback for an older form still settles.
func (q queries) SetMerchantTradeNo(ctx context.Context, orderID int64, merchantTradeNo string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE orders SET merchant_trade_no = $1, updated_at = NOW() WHERE id = $2`,
		merchantTradeNo, orderID)
	if isUniqueViolation(err) {
		return ErrDuplicateMerchantTradeNo
	}
	if err != nil {
		return fmt.Errorf("failed to set merchant trade number: %w", err)
	}
	if err := expectOneRow(res, ErrOrderNotFound); err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO payment_attempts (merchant_trade_no, order_id) VALUES ($1, $2)`,
		merchantTradeNo, orderID)
	if isUniqueViolation(err) {
		return ErrDuplicateMerchantTradeNo
	}
	if err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	return nil
}

func (q queries) ApplyPayment(ctx context.Context, orderID int64, u PaymentUpdate) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $1,
			payment_status = $2,
			payment_method = COALESCE($3, payment_method),
			gateway_trade_no = COALESCE($4, gateway_trade_no),
			gateway_rtn_code = $5,
			gateway_rtn_msg = $6,
			payment_confirmed_at = COALESCE($7, payment_confirmed_at),
			merchant_trade_no = COALESCE($11, merchant_trade_no),
			updated_at = NOW()
		WHERE id = $8 AND status = $9 AND payment_status = $10`,
		u.Status, u.PaymentStatus, u.Method, u.GatewayTradeNo, u.ReturnCode, u.ReturnMessage, u.ConfirmedAt,
		orderID, u.ExpectedStatus, u.ExpectedPaymentStatus, u.MerchantTradeNo)
	if err != nil {
		return false, fmt.Errorf("failed to apply payment result: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
