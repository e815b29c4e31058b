package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ledgermemory "github.com/commercekit/settlement/internal/domains/ledger/adapters/memory"
	ledgerdomain "github.com/commercekit/settlement/internal/domains/ledger/domain"
	ordersevents "github.com/commercekit/settlement/internal/domains/orders/adapters/events"
	ordersmemory "github.com/commercekit/settlement/internal/domains/orders/adapters/memory"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
	paymentports "github.com/commercekit/settlement/internal/domains/payment/ports"
)

// stubGateway scripts payment outcomes and counts calls.
type stubGateway struct {
	mu       sync.Mutex
	submits  int
	queries  int
	submitFn func(paymentports.SubmitRequest) paymentdomain.AttemptResult
	queryFn  func(ownerRef string, orderID int64) ([]paymentdomain.TransactionRecord, error)
}

func (g *stubGateway) Submit(_ context.Context, req paymentports.SubmitRequest) paymentdomain.AttemptResult {
	g.mu.Lock()
	g.submits++
	fn := g.submitFn
	g.mu.Unlock()
	if fn == nil {
		return paymentdomain.Success{TransactionKey: "tx-stub"}
	}
	return fn(req)
}

func (g *stubGateway) TransactionsByOrder(_ context.Context, ownerRef string, orderID int64) ([]paymentdomain.TransactionRecord, error) {
	g.mu.Lock()
	g.queries++
	fn := g.queryFn
	g.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ownerRef, orderID)
}

func (g *stubGateway) Submits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits
}

func (g *stubGateway) Queries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}

type fixture struct {
	ledger  *ledgermemory.Store
	repo    *ordersmemory.Repository
	gateway *stubGateway
	events  *ordersevents.Recorder
	service *Service

	now time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ledger:  ledgermemory.NewStore(),
		repo:    ordersmemory.NewRepository(),
		gateway: &stubGateway{},
		events:  ordersevents.NewRecorder(),
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ledger.SeedProduct(ledgerdomain.Product{ID: 1, Name: "keyboard", Price: 50_000, Stock: 10})
	f.ledger.SeedProduct(ledgerdomain.Product{ID: 2, Name: "mouse", Price: 30_000, Stock: 5})
	f.ledger.SeedWallet(ledgerdomain.Wallet{OwnerRef: "user-1", Balance: 100_000})
	f.ledger.SeedCoupon(ledgerdomain.UserCoupon{ID: 1, OwnerRef: "user-1", Code: "FIX5K", Kind: ledgerdomain.CouponFixedAmount, Amount: 5_000})
	f.ledger.SeedCoupon(ledgerdomain.UserCoupon{ID: 2, OwnerRef: "user-1", Code: "TEN", Kind: ledgerdomain.CouponPercentage, Rate: 10})

	options := append([]Option{
		WithEvents(f.events),
		WithDelayer(ports.NopDelayer{}),
		WithClock(func() time.Time { return f.now }),
	}, opts...)
	f.service = NewService(f.repo, f.ledger, f.gateway, ordersmemory.NewTxManager(f.ledger, f.repo), options...)
	return f
}

func defaultInput() ports.CreateOrderInput {
	return ports.CreateOrderInput{
		OwnerRef: "user-1",
		Items:    []ports.ItemInput{{ProductID: 1, Quantity: 2}},
		CardType: paymentdomain.CardSamsung,
		CardNo:   "1234-5678-9012-3456",
	}
}

func (f *fixture) productStock(t *testing.T, productID int64) int64 {
	t.Helper()
	product, err := f.ledger.ProductForUpdate(context.Background(), productID)
	require.NoError(t, err)
	return product.Stock
}

func (f *fixture) walletBalance(t *testing.T, ownerRef string) int64 {
	t.Helper()
	wallet, err := f.ledger.WalletForUpdate(context.Background(), ownerRef)
	require.NoError(t, err)
	return wallet.Balance
}

func (f *fixture) coupon(t *testing.T, ownerRef, code string) *ledgerdomain.UserCoupon {
	t.Helper()
	coupon, err := f.ledger.CouponByCode(context.Background(), ownerRef, code)
	require.NoError(t, err)
	return coupon
}

func ledgerProduct(id int64, name string, price, stock int64) ledgerdomain.Product {
	return ledgerdomain.Product{ID: id, Name: name, Price: price, Stock: stock}
}

func ledgerWallet(ownerRef string, balance int64) ledgerdomain.Wallet {
	return ledgerdomain.Wallet{OwnerRef: ownerRef, Balance: balance}
}

func successRecords(key string) []paymentdomain.TransactionRecord {
	return []paymentdomain.TransactionRecord{{TransactionKey: key, Status: paymentdomain.TxSuccess}}
}

func failedRecords(key, reason string) []paymentdomain.TransactionRecord {
	return []paymentdomain.TransactionRecord{{TransactionKey: key, Status: paymentdomain.TxFailed, Reason: reason}}
}
