// Package ports declares the driven-side contracts of the ledger context.
package ports

import (
	"context"
	"errors"

	"github.com/commercekit/settlement/internal/domains/ledger/domain"
)

var (
	// ErrProductNotFound indicates the product id is unknown.
	ErrProductNotFound = errors.New("product not found")
	// ErrWalletNotFound indicates the owner has no wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrCouponNotFound indicates no such coupon for the owner.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponConflict indicates a stale coupon save lost an optimistic race.
	ErrCouponConflict = errors.New("coupon version conflict")
)

// Ledger provides transactional access to stock, wallets, and coupons.
// The ForUpdate variants take a row lock for the duration of the enclosing
// transaction; SaveCoupon is version-checked instead of locked.
type Ledger interface {
	ProductForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	SaveProduct(ctx context.Context, product *domain.Product) error

	WalletForUpdate(ctx context.Context, ownerRef string) (*domain.Wallet, error)
	SaveWallet(ctx context.Context, wallet *domain.Wallet) error

	CouponByCode(ctx context.Context, ownerRef, code string) (*domain.UserCoupon, error)
	// SaveCoupon persists the coupon if its version still matches the loaded
	// one, bumping the version on success. A lost race returns ErrCouponConflict.
	SaveCoupon(ctx context.Context, coupon *domain.UserCoupon) error
}
