// Package events provides order lifecycle event publishers: a structured-log
// publisher for local runs, a Kafka publisher for deployments, and an
// in-memory recorder for tests.
package events

import (
	"context"
	"log/slog"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var _ ports.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes lifecycle events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher over the given logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// OrderCreated logs the creation event.
func (p *LogPublisher) OrderCreated(ctx context.Context, order *domain.Order) {
	p.log(ctx, "order.created", order)
}

// OrderCompleted logs the completion event.
func (p *LogPublisher) OrderCompleted(ctx context.Context, order *domain.Order) {
	p.log(ctx, "order.completed", order)
}

// OrderCanceled logs the cancellation event.
func (p *LogPublisher) OrderCanceled(ctx context.Context, order *domain.Order) {
	p.log(ctx, "order.canceled", order)
}

func (p *LogPublisher) log(ctx context.Context, event string, order *domain.Order) {
	p.logger.LogAttrs(ctx, slog.LevelInfo, "order lifecycle event",
		slog.String("event", event),
		slog.Int64("order.id", order.ID),
		slog.String("order.owner", order.OwnerRef),
		slog.String("order.status", string(order.Status)),
		slog.Int64("order.charge_amount", order.ChargeAmount))
}
