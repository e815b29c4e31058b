package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance indicates a point deduction larger than the balance.
var ErrInsufficientBalance = errors.New("insufficient point balance")

// Wallet is an owner's point balance. Points are spent one-for-one against
// the order total before the remainder is charged to the gateway.
type Wallet struct {
	OwnerRef string
	Balance  int64
}

// Deduct removes amount from the balance. The balance never goes negative.
func (w *Wallet) Deduct(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}
	if w.Balance < amount {
		return fmt.Errorf("wallet %s: requested %d of %d available: %w", w.OwnerRef, amount, w.Balance, ErrInsufficientBalance)
	}
	w.Balance -= amount
	return nil
}

// Refund returns previously deducted points to the balance.
func (w *Wallet) Refund(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive, got %d", amount)
	}
	w.Balance += amount
	return nil
}
