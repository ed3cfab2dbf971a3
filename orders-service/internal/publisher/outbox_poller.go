package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/metrics"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const batchSize = 100

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays committed order events from the outbox table to Kafka.
// Delivery is at least once; consumers dedupe on the event_id header.
type OutboxPoller struct {
	interval time.Duration
	outbox   repository.OutboxStore
	writer   MessageWriter
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(outbox repository.OutboxStore, w MessageWriter, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxPoller{
		interval: interval,
		outbox:   outbox,
		writer:   w,
		metrics:  m,
		log:      logger.Component(log, "outbox_poller"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.publishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// publishPending returns the number of events published in this pass.
func (p *OutboxPoller) publishPending(ctx context.Context) int {
	events, err := p.outbox.UnpublishedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.metrics.OutboxEvents.WithLabelValues(event.EventType, "failed").Inc()
			p.log.Warn("failed to publish event",
				zap.Int64("id", event.ID), zap.String("event_type", event.EventType), zap.Error(err))
			// later events for the same order must not overtake this one
			return published
		}

		if err := p.outbox.MarkEventPublished(ctx, event.ID); err != nil {
			p.log.Warn("failed to mark event published", zap.Int64("id", event.ID), zap.Error(err))
			return published
		}
		p.metrics.OutboxEvents.WithLabelValues(event.EventType, "published").Inc()
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	})
}
