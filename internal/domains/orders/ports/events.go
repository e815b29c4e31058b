package ports

import (
	"context"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
)

// EventPublisher announces order lifecycle changes to interested systems.
// Publishing is best-effort: settlement never fails because an event could
// not be delivered.
type EventPublisher interface {
	OrderCreated(ctx context.Context, order *domain.Order)
	OrderCompleted(ctx context.Context, order *domain.Order)
	OrderCanceled(ctx context.Context, order *domain.Order)
}
