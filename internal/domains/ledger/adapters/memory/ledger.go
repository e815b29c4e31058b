// Package memory provides an in-memory ledger used by tests and DSN-less boot.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/commercekit/settlement/internal/domains/ledger/domain"
	"github.com/commercekit/settlement/internal/domains/ledger/ports"
)

var _ ports.Ledger = (*Store)(nil)

// Store keeps products, wallets, and coupons in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	wallets  map[string]domain.Wallet
	coupons  map[string]domain.UserCoupon
}

// NewStore creates an empty ledger store.
func NewStore() *Store {
	return &Store{
		products: make(map[int64]domain.Product),
		wallets:  make(map[string]domain.Wallet),
		coupons:  make(map[string]domain.UserCoupon),
	}
}

// SeedProduct inserts or replaces a product.
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SeedWallet inserts or replaces a wallet.
func (s *Store) SeedWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.OwnerRef] = w
}

// SeedCoupon inserts or replaces a coupon.
func (s *Store) SeedCoupon(c domain.UserCoupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[couponKey(c.OwnerRef, c.Code)] = c
}

// ProductForUpdate returns a copy of the product. Lock semantics come from
// the enclosing memory transaction, which serializes writers.
func (s *Store) ProductForUpdate(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ports.ErrProductNotFound)
	}
	return &p, nil
}

// SaveProduct persists the product state.
func (s *Store) SaveProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return fmt.Errorf("product %d: %w", product.ID, ports.ErrProductNotFound)
	}
	s.products[product.ID] = *product
	return nil
}

// WalletForUpdate returns a copy of the owner's wallet.
func (s *Store) WalletForUpdate(_ context.Context, ownerRef string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[ownerRef]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", ownerRef, ports.ErrWalletNotFound)
	}
	return &w, nil
}

// SaveWallet persists the wallet state.
func (s *Store) SaveWallet(_ context.Context, wallet *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[wallet.OwnerRef]; !ok {
		return fmt.Errorf("wallet %s: %w", wallet.OwnerRef, ports.ErrWalletNotFound)
	}
	s.wallets[wallet.OwnerRef] = *wallet
	return nil
}

// CouponByCode returns a copy of the owner's coupon.
func (s *Store) CouponByCode(_ context.Context, ownerRef, code string) (*domain.UserCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[couponKey(ownerRef, code)]
	if !ok {
		return nil, fmt.Errorf("coupon %s/%s: %w", ownerRef, code, ports.ErrCouponNotFound)
	}
	return &c, nil
}

// SaveCoupon persists the coupon when the caller holds the current version.
func (s *Store) SaveCoupon(_ context.Context, coupon *domain.UserCoupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := couponKey(coupon.OwnerRef, coupon.Code)
	current, ok := s.coupons[key]
	if !ok {
		return fmt.Errorf("coupon %s: %w", coupon.Code, ports.ErrCouponNotFound)
	}
	if current.Version != coupon.Version {
		return fmt.Errorf("coupon %s: held %d, stored %d: %w", coupon.Code, coupon.Version, current.Version, ports.ErrCouponConflict)
	}
	saved := *coupon
	saved.Version++
	s.coupons[key] = saved
	coupon.Version = saved.Version
	return nil
}

// Snapshot captures the full ledger state for transactional rollback.
func (s *Store) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ledgerSnapshot{
		products: make(map[int64]domain.Product, len(s.products)),
		wallets:  make(map[string]domain.Wallet, len(s.wallets)),
		coupons:  make(map[string]domain.UserCoupon, len(s.coupons)),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.wallets {
		snap.wallets[k] = v
	}
	for k, v := range s.coupons {
		snap.coupons[k] = v
	}
	return snap
}

// Restore rolls the ledger back to a snapshot taken by Snapshot.
func (s *Store) Restore(snapshot any) {
	snap, ok := snapshot.(ledgerSnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.wallets = snap.wallets
	s.coupons = snap.coupons
}

type ledgerSnapshot struct {
	products map[int64]domain.Product
	wallets  map[string]domain.Wallet
	coupons  map[string]domain.UserCoupon
}

func couponKey(ownerRef, code string) string {
	return ownerRef + "/" + code
}
