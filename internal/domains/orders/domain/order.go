// Package domain holds the order aggregate and its settlement state machine.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the settlement state of an order.
type Status string

const (
	// StatusPending means resources are reserved and payment is unconfirmed.
	StatusPending Status = "PENDING"
	// StatusCompleted means payment was confirmed. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCanceled means the order was abandoned and resources restored. Terminal.
	StatusCanceled Status = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

var (
	// ErrInvalidOrder indicates order input that fails validation.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidTransition indicates a state change the machine forbids.
	ErrInvalidTransition = errors.New("invalid order state transition")
)

// Item is one order line. UnitPrice is captured at reservation time so later
// price changes do not alter the settled amount.
type Item struct {
	ProductID int64
	Name      string
	Quantity  int64
	UnitPrice int64
}

// Subtotal is the line total.
func (i Item) Subtotal() int64 {
	return i.Quantity * i.UnitPrice
}

// Order is the purchasing aggregate. Amounts relate as
// TotalAmount = Subtotal() - DiscountAmount and
// ChargeAmount = TotalAmount - PointsUsed; ChargeAmount is what the payment
// gateway is asked to collect.
type Order struct {
	ID             int64
	OwnerRef       string
	Items          []Item
	CouponCode     string
	DiscountAmount int64
	PointsUsed     int64
	TotalAmount    int64
	ChargeAmount   int64
	Status         Status
	PaymentKey     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder builds a pending order from validated reservation results.
func NewOrder(ownerRef string, items []Item, couponCode string, discount, pointsUsed int64, now time.Time) (*Order, error) {
	if ownerRef == "" {
		return nil, fmt.Errorf("owner reference is required: %w", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required: %w", ErrInvalidOrder)
	}
	seen := make(map[int64]struct{}, len(items))
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive: %w", item.ProductID, ErrInvalidOrder)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("item %d: duplicate product: %w", item.ProductID, ErrInvalidOrder)
		}
		seen[item.ProductID] = struct{}{}
		subtotal += item.Subtotal()
	}
	if discount < 0 || discount > subtotal {
		return nil, fmt.Errorf("discount %d out of range: %w", discount, ErrInvalidOrder)
	}
	total := subtotal - discount
	if pointsUsed < 0 || pointsUsed > total {
		return nil, fmt.Errorf("points %d out of range: %w", pointsUsed, ErrInvalidOrder)
	}
	return &Order{
		OwnerRef:       ownerRef,
		Items:          items,
		CouponCode:     couponCode,
		DiscountAmount: discount,
		PointsUsed:     pointsUsed,
		TotalAmount:    total,
		ChargeAmount:   total - pointsUsed,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Subtotal is the sum of all line totals before discounts.
func (o *Order) Subtotal() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += item.Subtotal()
	}
	return sum
}

// Complete confirms payment. Completing a completed order is a no-op;
// completing a canceled order is forbidden.
func (o *Order) Complete(now time.Time) error {
	switch o.Status {
	case StatusCompleted:
		return nil
	case StatusCanceled:
		return fmt.Errorf("order %d is canceled: %w", o.ID, ErrInvalidTransition)
	}
	o.Status = StatusCompleted
	o.UpdatedAt = now
	return nil
}

// Cancel abandons the order. Canceling a canceled order is a no-op; a
// completed order may still be canceled as a compensating action.
func (o *Order) Cancel(now time.Time) error {
	if o.Status == StatusCanceled {
		return nil
	}
	o.Status = StatusCanceled
	o.UpdatedAt = now
	return nil
}

// AttachPaymentKey records the gateway's transaction key after submission.
func (o *Order) AttachPaymentKey(key string, now time.Time) {
	o.PaymentKey = key
	o.UpdatedAt = now
}
