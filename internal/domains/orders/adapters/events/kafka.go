package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher emits lifecycle events to a Kafka topic, keyed by order id
// so one order's events stay in partition order. Delivery failures are
// logged, never surfaced: settlement does not depend on the broker.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// OrderCreated emits the creation event.
func (p *KafkaPublisher) OrderCreated(ctx context.Context, order *domain.Order) {
	p.publish(ctx, "order.created", order)
}

// OrderCompleted emits the completion event.
func (p *KafkaPublisher) OrderCompleted(ctx context.Context, order *domain.Order) {
	p.publish(ctx, "order.completed", order)
}

// OrderCanceled emits the cancellation event.
func (p *KafkaPublisher) OrderCanceled(ctx context.Context, order *domain.Order) {
	p.publish(ctx, "order.canceled", order)
}

type eventEnvelope struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Order      eventBody `json:"order"`
}

type eventBody struct {
	ID           int64  `json:"id"`
	OwnerRef     string `json:"ownerRef"`
	Status       string `json:"status"`
	TotalAmount  int64  `json:"totalAmount"`
	ChargeAmount int64  `json:"chargeAmount"`
	PointsUsed   int64  `json:"pointsUsed"`
	PaymentKey   string `json:"paymentKey,omitempty"`
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, order *domain.Order) {
	payload, err := json.Marshal(eventEnvelope{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Order: eventBody{
			ID:           order.ID,
			OwnerRef:     order.OwnerRef,
			Status:       string(order.Status),
			TotalAmount:  order.TotalAmount,
			ChargeAmount: order.ChargeAmount,
			PointsUsed:   order.PointsUsed,
			PaymentKey:   order.PaymentKey,
		},
	})
	if err != nil {
		p.logger.Error("failed to encode lifecycle event",
			slog.String("event", eventType), slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("failed to publish lifecycle event",
			slog.String("event", eventType), slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
	}
}
