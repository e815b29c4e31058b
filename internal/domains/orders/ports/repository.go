// Package ports declares the driving and driven contracts of the orders context.
package ports

import (
	"context"
	"errors"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
)

// ErrOrderNotFound indicates the order id is unknown.
var ErrOrderNotFound = errors.New("order not found")

// Repository persists the order aggregate.
type Repository interface {
	// Create persists a new order and assigns its id.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error)

	// Transition conditionally moves the order from one status to another.
	// It reports whether this caller won the transition; a false return with
	// nil error means another writer got there first, which callers treat as
	// an idempotent outcome.
	Transition(ctx context.Context, id int64, from, to domain.Status) (bool, error)

	// SetPaymentKey records the gateway transaction key on the order.
	SetPaymentKey(ctx context.Context, id int64, key string) error
}
