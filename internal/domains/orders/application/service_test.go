package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
	paymentports "github.com/commercekit/settlement/internal/domains/payment/ports"
)

func TestCreateOrder_SubmitsAndStaysPending(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(req paymentports.SubmitRequest) paymentdomain.AttemptResult {
		require.Equal(t, "user-1", req.OwnerRef)
		require.Equal(t, int64(100_000), req.Amount)
		return paymentdomain.Success{TransactionKey: "tx-1"}
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, view.Status)
	require.Equal(t, "tx-1", view.PaymentKey)
	require.Equal(t, int64(100_000), view.ChargeAmount)
	require.Equal(t, int64(8), f.productStock(t, 1))
	require.Equal(t, 1, f.events.CountOf("order.created"))
	require.Equal(t, 0, f.events.CountOf("order.completed"))
}

func TestCreateOrder_AppliesCouponAndPoints(t *testing.T) {
	f := newFixture(t)

	input := defaultInput()
	input.CouponCode = "TEN"
	input.PointsToUse = 10_000
	view, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	// Subtotal 100_000, 10% coupon, then 10_000 points.
	require.Equal(t, int64(10_000), view.DiscountAmount)
	require.Equal(t, int64(90_000), view.TotalAmount)
	require.Equal(t, int64(80_000), view.ChargeAmount)
	require.Equal(t, int64(90_000), f.walletBalance(t, "user-1"))
	require.True(t, f.coupon(t, "user-1", "TEN").Used)
}

func TestCreateOrder_FullyPointPaidCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	f.ledger.SeedWallet(ledgerWallet("user-1", 200_000))

	input := defaultInput()
	input.PointsToUse = 100_000
	view, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, view.Status)
	require.Equal(t, int64(0), view.ChargeAmount)
	require.Equal(t, 0, f.gateway.Submits())
	require.Equal(t, 1, f.events.CountOf("order.completed"))
}

func TestCreateOrder_BusinessDeclineCancelsAndRestores(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.BusinessFailure{Code: "LIMIT_EXCEEDED", Message: "daily limit exceeded"}
	}

	input := defaultInput()
	input.CouponCode = "FIX5K"
	input.PointsToUse = 5_000
	_, err := f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrPaymentRejected)

	var declined *PaymentDeclinedError
	require.ErrorAs(t, err, &declined)
	require.Equal(t, "LIMIT_EXCEEDED", declined.Code)

	orders, listErr := f.repo.ListByOwner(context.Background(), "user-1")
	require.NoError(t, listErr)
	require.Len(t, orders, 1)
	require.Equal(t, domain.StatusCanceled, orders[0].Status)

	require.Equal(t, int64(10), f.productStock(t, 1))
	require.Equal(t, int64(100_000), f.walletBalance(t, "user-1"))
	require.False(t, f.coupon(t, "user-1", "FIX5K").Used)
	require.Equal(t, 1, f.events.CountOf("order.canceled"))
}

func TestCreateOrder_TransientFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.TransientFailure{Cause: context.DeadlineExceeded}
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, view.Status)
	require.Empty(t, view.PaymentKey)
	// Resources stay reserved until reconciliation decides.
	require.Equal(t, int64(8), f.productStock(t, 1))
	require.Equal(t, 0, f.gateway.Queries())
}

func TestCreateOrder_CircuitOpenLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.CircuitOpen{}
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, view.Status)
	require.Equal(t, 1, f.gateway.Submits())
}

func TestCreateOrder_TimeoutRecoversFromStatusQuery(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.TransientFailure{Cause: context.DeadlineExceeded, Timeout: true}
	}
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return successRecords("tx-recovered"), nil
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, view.Status)
	require.Equal(t, "tx-recovered", view.PaymentKey)
	require.Equal(t, 1, f.gateway.Queries())
}

func TestCreateOrder_TimeoutWithFailedRecordCancels(t *testing.T) {
	f := newFixture(t)
	f.gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.TransientFailure{Cause: context.DeadlineExceeded, Timeout: true}
	}
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return failedRecords("tx-1", "INSUFFICIENT_FUNDS"), nil
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, view.Status)
	require.Equal(t, int64(10), f.productStock(t, 1))
}

func TestCreateOrder_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	input := defaultInput()
	input.Items = []ports.ItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 6},
	}
	_, err := f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrResourceExhausted)

	// The first line's reservation must not survive the failed transaction.
	require.Equal(t, int64(10), f.productStock(t, 1))
	require.Equal(t, int64(5), f.productStock(t, 2))
	orders, listErr := f.repo.ListByOwner(context.Background(), "user-1")
	require.NoError(t, listErr)
	require.Empty(t, orders)
	require.Equal(t, 0, f.gateway.Submits())
}

func TestCreateOrder_InsufficientPointsFails(t *testing.T) {
	f := newFixture(t)

	input := defaultInput()
	input.PointsToUse = 150_000
	_, err := f.service.CreateOrder(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, int64(100_000), f.walletBalance(t, "user-1"))
}

func TestCreateOrder_UsedCouponFails(t *testing.T) {
	f := newFixture(t)
	used := f.coupon(t, "user-1", "FIX5K")
	require.NoError(t, used.Use())
	f.ledger.SeedCoupon(*used)

	input := defaultInput()
	input.CouponCode = "FIX5K"
	_, err := f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrResourceExhausted)
	require.Equal(t, int64(10), f.productStock(t, 1))
}

func TestCreateOrder_UnknownProductFails(t *testing.T) {
	f := newFixture(t)

	input := defaultInput()
	input.Items = []ports.ItemInput{{ProductID: 99, Quantity: 1}}
	_, err := f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateOrder_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := defaultInput()
	input.OwnerRef = ""
	_, err := f.service.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrInvalidInput)

	input = defaultInput()
	input.Items = nil
	_, err = f.service.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrInvalidInput)

	input = defaultInput()
	input.CardType = "VISA"
	_, err = f.service.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrInvalidInput)

	input = defaultInput()
	input.CardNo = ""
	_, err = f.service.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrInvalidInput)

	require.Equal(t, 0, f.gateway.Submits())
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	f.ledger.SeedProduct(ledgerProduct(3, "limited", 10_000, 1))

	input := defaultInput()
	input.Items = []ports.ItemInput{{ProductID: 3, Quantity: 1}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateOrder(context.Background(), input)
		}(i)
	}
	wg.Wait()

	var succeeded, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrResourceExhausted)
			exhausted++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, exhausted)
	require.Equal(t, int64(0), f.productStock(t, 3))
}

func TestGetOrder_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)

	got, err := f.service.GetOrder(context.Background(), "user-1", view.ID)
	require.NoError(t, err)
	require.Equal(t, view.ID, got.ID)

	_, err = f.service.GetOrder(context.Background(), "user-2", view.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.service.GetOrder(context.Background(), "user-1", 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders_ReturnsOwnersOrders(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	_, err = f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)

	views, err := f.service.ListOrders(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, views, 2)

	views, err = f.service.ListOrders(context.Background(), "user-2")
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestCancelOrder_RestoresResources(t *testing.T) {
	f := newFixture(t)

	input := defaultInput()
	input.CouponCode = "FIX5K"
	input.PointsToUse = 5_000
	view, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, int64(8), f.productStock(t, 1))

	canceled, err := f.service.CancelOrder(context.Background(), "user-1", view.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, canceled.Status)
	require.Equal(t, int64(10), f.productStock(t, 1))
	require.Equal(t, int64(100_000), f.walletBalance(t, "user-1"))
	require.False(t, f.coupon(t, "user-1", "FIX5K").Used)
	require.Equal(t, 1, f.events.CountOf("order.canceled"))
}

func TestCancelOrder_SecondCancelIsNoop(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)

	_, err = f.service.CancelOrder(context.Background(), "user-1", view.ID)
	require.NoError(t, err)
	again, err := f.service.CancelOrder(context.Background(), "user-1", view.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, again.Status)

	// A second cancel must not restore stock twice.
	require.Equal(t, int64(10), f.productStock(t, 1))
	require.Equal(t, 1, f.events.CountOf("order.canceled"))
}

func TestCancelOrder_CompletedOrderIsCompensated(t *testing.T) {
	f := newFixture(t)
	f.gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return successRecords("tx-1"), nil
	}

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)
	require.NoError(t, f.service.HandleCallback(context.Background(), ports.CallbackInput{
		OrderID:        view.ID,
		TransactionKey: "tx-1",
		Status:         paymentdomain.TxSuccess,
	}))

	canceled, err := f.service.CancelOrder(context.Background(), "user-1", view.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, canceled.Status)
	require.Equal(t, int64(10), f.productStock(t, 1))
}

func TestCancelOrder_WrongOwner(t *testing.T) {
	f := newFixture(t)

	view, err := f.service.CreateOrder(context.Background(), defaultInput())
	require.NoError(t, err)

	_, err = f.service.CancelOrder(context.Background(), "user-2", view.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
