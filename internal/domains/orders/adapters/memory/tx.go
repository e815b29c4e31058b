package memory

import (
	"context"
	"sync"

	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var _ ports.TxManager = (*TxManager)(nil)

// Transactional is implemented by in-memory stores that can roll back to a
// point-in-time snapshot.
type Transactional interface {
	Snapshot() any
	Restore(snapshot any)
}

// TxManager gives in-memory stores transaction semantics: one mutex
// serializes all transactions, which also stands in for row locking, and a
// failing function restores every participating store from its snapshot.
type TxManager struct {
	mu     sync.Mutex
	stores []Transactional
}

// NewTxManager creates a transaction manager over the given stores.
func NewTxManager(stores ...Transactional) *TxManager {
	return &TxManager{stores: stores}
}

// WithinTx runs fn atomically across all participating stores.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]any, len(m.stores))
	for i, store := range m.stores {
		snapshots[i] = store.Snapshot()
	}
	if err := fn(ctx); err != nil {
		for i, store := range m.stores {
			store.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
