package repository

import (
	"context"
	"fmt"
)

func (q queries) Reserve(ctx context.Context, productID int64, quantity int) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reserve result: %w", err)
	}
	return n == 1, nil
}

func (q queries) Release(ctx context.Context, productID int64, quantity int) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}
	return nil
}
