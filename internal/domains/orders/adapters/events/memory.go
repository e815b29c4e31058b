package events

import (
	"context"
	"sync"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var _ ports.EventPublisher = (*Recorder)(nil)

// Recorded is one captured lifecycle event.
type Recorded struct {
	Type    string
	OrderID int64
	Status  domain.Status
}

// Recorder captures lifecycle events for test assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OrderCreated records the creation event.
func (r *Recorder) OrderCreated(_ context.Context, order *domain.Order) {
	r.record("order.created", order)
}

// OrderCompleted records the completion event.
func (r *Recorder) OrderCompleted(_ context.Context, order *domain.Order) {
	r.record("order.completed", order)
}

// OrderCanceled records the cancellation event.
func (r *Recorder) OrderCanceled(_ context.Context, order *domain.Order) {
	r.record("order.canceled", order)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// CountOf returns how many events of the given type were recorded.
func (r *Recorder) CountOf(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *Recorder) record(eventType string, order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Type: eventType, OrderID: order.ID, Status: order.Status})
}
