// Package orders holds the durable payment-recovery workflow.
package orders

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	orderactivities "github.com/commercekit/settlement/internal/platform/temporal/activities/orders"
)

const (
	// PaymentRecoveryWorkflowName is the public identifier for registering the workflow.
	PaymentRecoveryWorkflowName = "orders.workflows.PaymentRecovery"
	// PaymentRecoveryTaskQueue is the queue consumed by the recovery worker.
	PaymentRecoveryTaskQueue = "PAYMENT_RECOVERY"
)

// PaymentRecoveryWorkflowInput identifies the pending order to settle.
type PaymentRecoveryWorkflowInput struct {
	OrderID int64
	TraceID string
}

// PaymentRecoveryWorkflow drives one order to a settled state, retrying the
// reconcile activity while the gateway stays unreachable.
func PaymentRecoveryWorkflow(ctx workflow.Context, input PaymentRecoveryWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("PaymentRecoveryWorkflow started", withTraceID(input.TraceID, "orderId", input.OrderID)...)

	options := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    10,
		},
	}
	err := workflow.ExecuteActivity(
		workflow.WithActivityOptions(ctx, options),
		orderactivities.ReconcileOrderActivityName,
		input.OrderID,
	).Get(ctx, nil)
	if err != nil {
		logger.Error("PaymentRecoveryWorkflow failed", withTraceID(input.TraceID, "orderId", input.OrderID, "error", err)...)
		return err
	}
	logger.Info("PaymentRecoveryWorkflow completed", withTraceID(input.TraceID, "orderId", input.OrderID)...)
	return nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
