// Package postgres persists the resource ledger with GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commercekit/settlement/internal/domains/ledger/domain"
	"github.com/commercekit/settlement/internal/domains/ledger/ports"
	platformpostgres "github.com/commercekit/settlement/internal/platform/postgres"
)

var _ ports.Ledger = (*Ledger)(nil)

// Ledger is the GORM-backed ledger adapter. Calls join the transaction bound
// to the context when one is present.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger over the given connection.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// ProductRecord is the persistence shape for products.
type ProductRecord struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string `gorm:"column:name;not null"`
	Price int64  `gorm:"column:price;not null"`
	Stock int64  `gorm:"column:stock;not null"`
}

// TableName maps the record to the products table.
func (ProductRecord) TableName() string { return "products" }

// WalletRecord is the persistence shape for point wallets.
type WalletRecord struct {
	OwnerRef string `gorm:"column:owner_ref;primaryKey"`
	Balance  int64  `gorm:"column:balance;not null"`
}

// TableName maps the record to the point_wallets table.
func (WalletRecord) TableName() string { return "point_wallets" }

// CouponRecord is the persistence shape for user coupons.
type CouponRecord struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerRef string `gorm:"column:owner_ref;not null;uniqueIndex:idx_user_coupons_owner_code"`
	Code     string `gorm:"column:code;not null;uniqueIndex:idx_user_coupons_owner_code"`
	Kind     string `gorm:"column:kind;not null"`
	Amount   int64  `gorm:"column:amount;not null"`
	Rate     int64  `gorm:"column:rate;not null"`
	Used     bool   `gorm:"column:used;not null"`
	Version  int64  `gorm:"column:version;not null"`
}

// TableName maps the record to the user_coupons table.
func (CouponRecord) TableName() string { return "user_coupons" }

// ProductForUpdate loads the product row under FOR UPDATE.
func (l *Ledger) ProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	var record ProductRecord
	err := platformpostgres.TxFrom(ctx, l.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ports.ErrProductNotFound)
		}
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &domain.Product{ID: record.ID, Name: record.Name, Price: record.Price, Stock: record.Stock}, nil
}

// SaveProduct writes the product's mutable columns.
func (l *Ledger) SaveProduct(ctx context.Context, product *domain.Product) error {
	result := platformpostgres.TxFrom(ctx, l.db).
		Model(&ProductRecord{}).
		Where("id = ?", product.ID).
		Update("stock", product.Stock)
	if result.Error != nil {
		return fmt.Errorf("save product %d: %w", product.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", product.ID, ports.ErrProductNotFound)
	}
	return nil
}

// WalletForUpdate loads the owner's wallet row under FOR UPDATE.
func (l *Ledger) WalletForUpdate(ctx context.Context, ownerRef string) (*domain.Wallet, error) {
	var record WalletRecord
	err := platformpostgres.TxFrom(ctx, l.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, "owner_ref = ?", ownerRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet %s: %w", ownerRef, ports.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("load wallet %s: %w", ownerRef, err)
	}
	return &domain.Wallet{OwnerRef: record.OwnerRef, Balance: record.Balance}, nil
}

// SaveWallet writes the wallet balance.
func (l *Ledger) SaveWallet(ctx context.Context, wallet *domain.Wallet) error {
	result := platformpostgres.TxFrom(ctx, l.db).
		Model(&WalletRecord{}).
		Where("owner_ref = ?", wallet.OwnerRef).
		Update("balance", wallet.Balance)
	if result.Error != nil {
		return fmt.Errorf("save wallet %s: %w", wallet.OwnerRef, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("wallet %s: %w", wallet.OwnerRef, ports.ErrWalletNotFound)
	}
	return nil
}

// CouponByCode loads the owner's coupon without locking; redemption is
// guarded by the version column instead.
func (l *Ledger) CouponByCode(ctx context.Context, ownerRef, code string) (*domain.UserCoupon, error) {
	var record CouponRecord
	err := platformpostgres.TxFrom(ctx, l.db).
		First(&record, "owner_ref = ? AND code = ?", ownerRef, code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon %s/%s: %w", ownerRef, code, ports.ErrCouponNotFound)
		}
		return nil, fmt.Errorf("load coupon %s/%s: %w", ownerRef, code, err)
	}
	return &domain.UserCoupon{
		ID:       record.ID,
		OwnerRef: record.OwnerRef,
		Code:     record.Code,
		Kind:     domain.CouponKind(record.Kind),
		Amount:   record.Amount,
		Rate:     record.Rate,
		Used:     record.Used,
		Version:  record.Version,
	}, nil
}

// SaveCoupon writes the coupon conditionally on its loaded version. A row
// that moved on means another transaction redeemed or released it first.
func (l *Ledger) SaveCoupon(ctx context.Context, coupon *domain.UserCoupon) error {
	result := platformpostgres.TxFrom(ctx, l.db).
		Model(&CouponRecord{}).
		Where("id = ? AND version = ?", coupon.ID, coupon.Version).
		Updates(map[string]any{"used": coupon.Used, "version": coupon.Version + 1})
	if result.Error != nil {
		return fmt.Errorf("save coupon %s: %w", coupon.Code, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("coupon %s: %w", coupon.Code, ports.ErrCouponConflict)
	}
	coupon.Version++
	return nil
}
