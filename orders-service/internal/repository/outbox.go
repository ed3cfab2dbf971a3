package repository

import (
	"context"
	"fmt"
)

func (q queries) EnqueueEvent(ctx context.Context, e *OutboxEvent) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO order_outbox (event_id, aggregate_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		e.EventID, e.AggregateID, e.EventType, e.Payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", e.EventType, err)
	}
	return nil
}

func (q queries) UnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, event_id, aggregate_id, event_type, payload, created_at
		FROM order_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox: %w", err)
	}
	return events, nil
}

func (q queries) MarkEventPublished(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE order_outbox SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d published: %w", id, err)
	}
	return nil
}
