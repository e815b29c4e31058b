// Package memory provides in-memory orders adapters used by tests and
// DSN-less boot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository keeps orders in a map guarded by a mutex.
type Repository struct {
	mu     sync.RWMutex
	orders map[int64]domain.Order
	nextID int64
	now    func() time.Time
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithClock overrides the time source used for transition timestamps.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository creates an empty order repository.
func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		orders: make(map[int64]domain.Order),
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Create persists a new order and assigns its id.
func (r *Repository) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneOrder(*order)
	stored.ID = r.nextID
	r.nextID++
	r.orders[stored.ID] = stored
	result := cloneOrder(stored)
	return &result, nil
}

// GetByID returns a copy of the order.
func (r *Repository) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
	}
	result := cloneOrder(stored)
	return &result, nil
}

// ListByOwner returns the owner's orders sorted by id.
func (r *Repository) ListByOwner(_ context.Context, ownerRef string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Order
	for _, stored := range r.orders {
		if stored.OwnerRef == ownerRef {
			copied := cloneOrder(stored)
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListByStatus returns all orders in the given status sorted by id.
func (r *Repository) ListByStatus(_ context.Context, status domain.Status) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Order
	for _, stored := range r.orders {
		if stored.Status == status {
			copied := cloneOrder(stored)
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Transition conditionally moves the order between statuses. The check and
// the write happen under one lock, so exactly one concurrent caller wins.
func (r *Repository) Transition(_ context.Context, id int64, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return false, fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
	}
	if stored.Status != from {
		return false, nil
	}
	stored.Status = to
	stored.UpdatedAt = r.now()
	r.orders[id] = stored
	return true, nil
}

// SetPaymentKey records the gateway transaction key.
func (r *Repository) SetPaymentKey(_ context.Context, id int64, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
	}
	stored.PaymentKey = key
	stored.UpdatedAt = r.now()
	r.orders[id] = stored
	return nil
}

// Snapshot captures the full repository state for transactional rollback.
func (r *Repository) Snapshot() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := repoSnapshot{orders: make(map[int64]domain.Order, len(r.orders)), nextID: r.nextID}
	for id, stored := range r.orders {
		snap.orders[id] = cloneOrder(stored)
	}
	return snap
}

// Restore rolls the repository back to a snapshot taken by Snapshot.
func (r *Repository) Restore(snapshot any) {
	snap, ok := snapshot.(repoSnapshot)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = snap.orders
	r.nextID = snap.nextID
}

type repoSnapshot struct {
	orders map[int64]domain.Order
	nextID int64
}

func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.Item, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}
