// Package orders bundles the Temporal activities of the orders context.
package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	ordersports "github.com/commercekit/settlement/internal/domains/orders/ports"
)

// ReconcileOrderActivityName settles one pending order against gateway truth.
const ReconcileOrderActivityName = "orders.activities.ReconcileOrder"

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	service ordersports.Service
}

// NewActivities wires the orders service into the Temporal activities bundle.
func NewActivities(service ordersports.Service) *Activities {
	return &Activities{service: service}
}

// ReconcileOrder resolves the order's payment state. It is safe to retry:
// settlement is idempotent and conditional transitions tolerate replays.
func (a *Activities) ReconcileOrder(ctx context.Context, orderID int64) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("reconcile activity not initialized", "orderId", orderID)
		return errors.New("reconcile activity not initialized")
	}
	logger.Info("ReconcileOrder activity started", "orderId", orderID)
	if err := a.service.ReconcileOrder(ctx, orderID); err != nil {
		logger.Error("ReconcileOrder activity failed", "orderId", orderID, "error", err)
		return err
	}
	logger.Info("ReconcileOrder activity completed", "orderId", orderID)
	return nil
}
