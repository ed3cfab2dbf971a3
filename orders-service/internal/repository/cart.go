package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/lib/pq"
)

func (q queries) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (q queries) Product(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, stock FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

const cartLinesQuery = `
	SELECT c.id, c.user_id, c.product_id, p.name, p.price, c.quantity, c.added_at
	FROM cart_lines c
	JOIN products p ON p.id = c.product_id
	WHERE c.user_id = $1
	ORDER BY c.added_at, c.id`

// CartLines returns the user's cart joined with current product name and price.
func (q queries) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	return q.cartLines(ctx, cartLinesQuery, userID)
}

// LockCartLines is CartLines with the cart rows locked until the transaction ends.
// A second checkout of the same cart waits here and then sees the rows the first one deleted.
func (q queries) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	return q.cartLines(ctx, cartLinesQuery+` FOR UPDATE OF c`, userID)
}

func (q queries) cartLines(ctx context.Context, query string, userID int64) ([]domain.CartLine, error) {
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}
	return lines, nil
}

// ClearCart deletes exactly the given lines of the user's cart.
// Fewer deleted rows than ids means another transaction consumed them first.
func (q queries) ClearCart(ctx context.Context, userID int64, lineIDs []int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(lineIDs))
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if n != int64(len(lineIDs)) {
		return fmt.Errorf("%w: deleted %d of %d lines", ErrCartChanged, n, len(lineIDs))
	}
	return nil
}

// AddCartQuantity adds delta to the line (creating it) and returns the new quantity.
func (q queries) AddCartQuantity(ctx context.Context, userID, productID int64, delta int) (int, error) {
	var quantity int
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING quantity`, userID, productID, delta).Scan(&quantity)
	if err != nil {
		return 0, fmt.Errorf("failed to add cart line: %w", err)
	}
	return quantity, nil
}

func (q queries) SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE cart_lines SET quantity = $1 WHERE user_id = $2 AND product_id = $3`,
		quantity, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	return expectOneRow(res, ErrCartLineNotFound)
}

func (q queries) DeleteCartLine(ctx context.Context, userID, productID int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return expectOneRow(res, ErrCartLineNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
