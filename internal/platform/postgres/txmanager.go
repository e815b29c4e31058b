package postgres

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx stores a transaction handle in the context for repositories to pick up.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction bound to the context, or fallback when the
// caller is not running inside one.
func TxFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	if fallback == nil {
		return nil
	}
	return fallback.WithContext(ctx)
}

// TxManager runs functions inside a database transaction. The transaction is
// carried through the context so every repository touched by fn joins it.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager over the given connection.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, runs fn with it bound to the context, and
// commits. Any error from fn rolls the whole transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
