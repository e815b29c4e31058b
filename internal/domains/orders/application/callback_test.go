package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
)

func (f *fixture) pendingOrder(t *testing.T) int64 {
	t.Helper()
	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, view.Status)
	return view.ID
}

func TestHandleCallback_SuccessCompletesOrder(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(_ string, id int64) ([]paymentdomain.TransactionRecord, error) {
		require.Equal(t, orderID, id)
		return successRecords("tx-verified"), nil
	}

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: "tx-verified",
		Status:         paymentdomain.TxSuccess,
	})
	require.NoError(t, err)

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, order.Status)
	require.Equal(t, "tx-verified", order.PaymentKey)
	require.Equal(t, 1, f.events.CountOf("order.completed"))
}

func TestHandleCallback_FailureCancelsAndRestores(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return failedRecords("tx-1", "LIMIT_EXCEEDED"), nil
	}

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: "tx-1",
		Status:         paymentdomain.TxFailed,
	})
	require.NoError(t, err)

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, order.Status)
	require.Equal(t, int64(10), f.productStock(t, 1))
}

func TestHandleCallback_DuplicateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return successRecords("tx-1"), nil
	}

	input := ports.CallbackInput{OrderID: orderID, TransactionKey: "tx-1", Status: paymentdomain.TxSuccess}
	require.NoError(t, f.service.HandleCallback(context.Background(), input))
	queriesAfterFirst := f.gateway.Queries()
	require.NoError(t, f.service.HandleCallback(context.Background(), input))

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, order.Status)
	require.Equal(t, 1, f.events.CountOf("order.completed"))
	// A callback for a settled order never re-queries the gateway.
	require.Equal(t, queriesAfterFirst, f.gateway.Queries())
}

func TestHandleCallback_GatewayRecordWinsOverAssertion(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return successRecords("tx-1"), nil
	}

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: "tx-1",
		Status:         paymentdomain.TxFailed,
		Reason:         "spoofed",
	})
	require.NoError(t, err)

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, order.Status)
	require.Equal(t, int64(8), f.productStock(t, 1))
}

func TestHandleCallback_QueryFailureFallsBackToAssertion(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return nil, errors.New("gateway unreachable")
	}

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: "tx-asserted",
		Status:         paymentdomain.TxSuccess,
	})
	require.NoError(t, err)

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, order.Status)
	require.Equal(t, "tx-asserted", order.PaymentKey)
}

func TestHandleCallback_NoRecordsFallsBackToAssertion(t *testing.T) {
	f := newFixture(t)
	orderID := f.pendingOrder(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return nil, nil
	}

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: "tx-asserted",
		Status:         paymentdomain.TxFailed,
	})
	require.NoError(t, err)

	order, err := f.repo.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, order.Status)
}

func TestHandleCallback_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        999,
		TransactionKey: "tx-1",
		Status:         paymentdomain.TxSuccess,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandleCallback_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.HandleCallback(ctx, ports.CallbackInput{TransactionKey: "tx", Status: paymentdomain.TxSuccess})
	require.ErrorIs(t, err, ErrInvalidInput)

	err = f.service.HandleCallback(ctx, ports.CallbackInput{OrderID: 1, Status: paymentdomain.TxSuccess})
	require.ErrorIs(t, err, ErrInvalidInput)

	err = f.service.HandleCallback(ctx, ports.CallbackInput{OrderID: 1, TransactionKey: "tx", Status: "APPROVED"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
