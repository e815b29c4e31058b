package ports

import "context"

// TxManager runs a function inside one atomic transaction. Repositories and
// the ledger join the transaction through the context, so every mutation in
// fn commits or rolls back together.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
