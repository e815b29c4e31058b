// Package workflows provides the recovery orchestrator adapters: one backed
// by Temporal for durable retries, one inline for tests and dev fallbacks.
package workflows

import (
	"context"
	"errors"
	"fmt"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/commercekit/settlement/internal/domains/orders/ports"
	recoveryworkflows "github.com/commercekit/settlement/internal/platform/temporal/workflows/orders"
)

var (
	_ ports.RecoveryOrchestrator = (*TemporalRecovery)(nil)
	_ ports.RecoveryOrchestrator = (*InlineRecovery)(nil)
)

// TemporalRecovery starts payment recovery workflows on a Temporal cluster.
type TemporalRecovery struct {
	client    client.Client
	taskQueue string
}

// NewTemporalRecovery wires a Temporal client into the orchestrator.
func NewTemporalRecovery(c client.Client) *TemporalRecovery {
	return &TemporalRecovery{client: c, taskQueue: recoveryworkflows.PaymentRecoveryTaskQueue}
}

// StartRecovery launches the durable recovery workflow for the order. The
// workflow id is derived from the order id, so a recovery already in flight
// is joined instead of duplicated.
func (o *TemporalRecovery) StartRecovery(ctx context.Context, orderID int64) error {
	if o == nil || o.client == nil {
		return errors.New("temporal recovery not configured")
	}
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("payment-recovery-%d", orderID),
		TaskQueue: o.taskQueue,
	}
	_, err := o.client.ExecuteWorkflow(
		ctx,
		options,
		recoveryworkflows.PaymentRecoveryWorkflow,
		recoveryworkflows.PaymentRecoveryWorkflowInput{OrderID: orderID, TraceID: workflowTraceID(ctx)},
	)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return err
	}
	return nil
}

// InlineRecovery reconciles synchronously without durable orchestration.
type InlineRecovery struct {
	service ports.Service
}

// NewInlineRecovery wraps the orders service for synchronous execution.
func NewInlineRecovery(service ports.Service) *InlineRecovery {
	return &InlineRecovery{service: service}
}

// StartRecovery delegates to the application service.
func (o *InlineRecovery) StartRecovery(ctx context.Context, orderID int64) error {
	if o == nil || o.service == nil {
		return errors.New("inline recovery not configured")
	}
	return o.service.ReconcileOrder(ctx, orderID)
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() || !spanCtx.TraceID().IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
