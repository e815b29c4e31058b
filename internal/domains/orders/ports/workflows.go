package ports

import "context"

// RecoveryOrchestrator triggers payment recovery for one order, either
// inline or through a durable workflow engine.
type RecoveryOrchestrator interface {
	StartRecovery(ctx context.Context, orderID int64) error
}
