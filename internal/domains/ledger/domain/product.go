// Package domain holds the resource ledger entities: product stock, point
// wallets, and user coupons. All monetary values are integer currency units.
package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientStock indicates a reservation larger than the remaining stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product is a sellable item with a finite stock count.
type Product struct {
	ID    int64
	Name  string
	Price int64
	Stock int64
}

// Reserve decrements stock by qty. Stock never goes negative; a reservation
// that would overdraw fails with ErrInsufficientStock.
func (p *Product) Reserve(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}
	if p.Stock < qty {
		return fmt.Errorf("product %d: requested %d of %d remaining: %w", p.ID, qty, p.Stock, ErrInsufficientStock)
	}
	p.Stock -= qty
	return nil
}

// Restock returns previously reserved quantity to stock.
func (p *Product) Restock(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("restock quantity must be positive, got %d", qty)
	}
	p.Stock += qty
	return nil
}
