// Package application orchestrates order settlement: reserving ledger
// resources, submitting payment, and settling pending orders from callbacks
// and reconciliation.
package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	ledgerdomain "github.com/commercekit/settlement/internal/domains/ledger/domain"
	ledgerports "github.com/commercekit/settlement/internal/domains/ledger/ports"
	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
	paymentports "github.com/commercekit/settlement/internal/domains/payment/ports"
)

var _ ports.Service = (*Service)(nil)

// Service implements the orders driving port.
type Service struct {
	repo    ports.Repository
	ledger  ledgerports.Ledger
	gateway paymentports.Gateway
	tx      ports.TxManager
	events  ports.EventPublisher
	delayer ports.Delayer
	logger  *slog.Logger
	now     func() time.Time

	callbackURL  string
	timeoutGrace time.Duration
	abandonAfter time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvents attaches a lifecycle event publisher.
func WithEvents(events ports.EventPublisher) Option {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

// WithDelayer overrides the post-timeout grace delay.
func WithDelayer(delayer ports.Delayer) Option {
	return func(s *Service) {
		if delayer != nil {
			s.delayer = delayer
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallbackURL sets the absolute URL the gateway calls back on.
func WithCallbackURL(url string) Option {
	return func(s *Service) { s.callbackURL = url }
}

// WithTimeoutGrace sets how long to wait before the post-timeout status query.
func WithTimeoutGrace(d time.Duration) Option {
	return func(s *Service) { s.timeoutGrace = d }
}

// WithAbandonAfter sets the age past which a pending order with no gateway
// record is canceled during reconciliation.
func WithAbandonAfter(d time.Duration) Option {
	return func(s *Service) { s.abandonAfter = d }
}

// NewService wires the settlement orchestrator.
func NewService(repo ports.Repository, ledger ledgerports.Ledger, gateway paymentports.Gateway, tx ports.TxManager, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		ledger:       ledger,
		gateway:      gateway,
		tx:           tx,
		events:       nopEvents{},
		delayer:      ports.SleepDelayer{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
		timeoutGrace: time.Second,
		abandonAfter: 30 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder reserves stock, points, and coupon in one transaction with the
// order row, then submits payment once. A definitive decline cancels the
// order and restores resources; any indeterminate outcome leaves it PENDING
// for callbacks and reconciliation to settle.
func (s *Service) CreateOrder(ctx context.Context, input ports.CreateOrderInput) (*ports.OrderView, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reserved, err := s.reserve(ctx, input)
		if err != nil {
			return err
		}
		draft, err := domain.NewOrder(input.OwnerRef, reserved.items, input.CouponCode, reserved.discount, input.PointsToUse, s.now())
		if err != nil {
			return err
		}
		order, err = s.repo.Create(ctx, draft)
		if err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	s.events.OrderCreated(ctx, order)

	// Fully point-paid orders need no gateway round trip.
	if order.ChargeAmount == 0 {
		if _, err := s.completeOrder(ctx, order.ID); err != nil {
			s.logger.Error("failed to complete point-paid order",
				slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
		}
		return s.viewByID(ctx, order.ID)
	}

	result := s.gateway.Submit(ctx, paymentports.SubmitRequest{
		OwnerRef:    order.OwnerRef,
		OrderID:     order.ID,
		CardType:    input.CardType,
		CardNo:      input.CardNo,
		Amount:      order.ChargeAmount,
		CallbackURL: s.callbackURL,
	})
	switch r := result.(type) {
	case paymentdomain.Success:
		// Approval is asynchronous: keep the order pending until a verified
		// callback or reconciliation confirms the transaction.
		if err := s.repo.SetPaymentKey(ctx, order.ID, r.TransactionKey); err != nil {
			s.logger.Error("failed to record payment key",
				slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
		}
	case paymentdomain.BusinessFailure:
		if _, err := s.cancelAndRestore(ctx, order.ID); err != nil {
			s.logger.Error("failed to cancel declined order",
				slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
		}
		return nil, &PaymentDeclinedError{Code: r.Code, Message: r.Message}
	case paymentdomain.TransientFailure:
		s.logger.Warn("payment outcome unknown, leaving order pending",
			slog.Int64("order.id", order.ID), slog.Bool("timeout", r.Timeout))
		if r.Timeout {
			s.recoverAfterTimeout(ctx, order)
		}
	case paymentdomain.CircuitOpen:
		s.logger.Warn("payment breaker open, leaving order pending",
			slog.Int64("order.id", order.ID))
	}
	return s.viewByID(ctx, order.ID)
}

// GetOrder returns one of the owner's orders.
func (s *Service) GetOrder(ctx context.Context, ownerRef string, orderID int64) (*ports.OrderView, error) {
	order, err := s.ownedOrder(ctx, ownerRef, orderID)
	if err != nil {
		return nil, err
	}
	return toView(order), nil
}

// ListOrders returns every order belonging to the owner.
func (s *Service) ListOrders(ctx context.Context, ownerRef string) ([]*ports.OrderView, error) {
	if ownerRef == "" {
		return nil, fmt.Errorf("owner reference is required: %w", ErrInvalidInput)
	}
	orders, err := s.repo.ListByOwner(ctx, ownerRef)
	if err != nil {
		return nil, mapError(err)
	}
	views := make([]*ports.OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toView(order))
	}
	return views, nil
}

// CancelOrder abandons one of the owner's orders, restoring its resources.
// Completed orders may be canceled as a compensating action; canceling a
// canceled order is a no-op.
func (s *Service) CancelOrder(ctx context.Context, ownerRef string, orderID int64) (*ports.OrderView, error) {
	order, err := s.ownedOrder(ctx, ownerRef, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCanceled {
		return toView(order), nil
	}
	won, err := s.cancelFrom(ctx, orderID, order.Status)
	if err != nil {
		return nil, mapError(err)
	}
	if !won {
		// Another writer settled the order first; report its current state.
		return s.viewByID(ctx, orderID)
	}
	return s.viewByID(ctx, orderID)
}

type reservation struct {
	items    []domain.Item
	discount int64
}

// reserve acquires ledger resources in a fixed lock order: stock rows sorted
// by product id, then the owner wallet, then the coupon. Every concurrent
// writer following the same order cannot deadlock.
func (s *Service) reserve(ctx context.Context, input ports.CreateOrderInput) (*reservation, error) {
	sorted := make([]ports.ItemInput, len(input.Items))
	copy(sorted, input.Items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	items := make([]domain.Item, 0, len(sorted))
	var subtotal int64
	for _, line := range sorted {
		product, err := s.ledger.ProductForUpdate(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if err := product.Reserve(line.Quantity); err != nil {
			return nil, err
		}
		if err := s.ledger.SaveProduct(ctx, product); err != nil {
			return nil, err
		}
		items = append(items, domain.Item{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
		subtotal += line.Quantity * product.Price
	}

	var wallet *ledgerdomain.Wallet
	if input.PointsToUse > 0 {
		var err error
		wallet, err = s.ledger.WalletForUpdate(ctx, input.OwnerRef)
		if err != nil {
			return nil, err
		}
	}

	var discount int64
	if input.CouponCode != "" {
		coupon, err := s.ledger.CouponByCode(ctx, input.OwnerRef, input.CouponCode)
		if err != nil {
			return nil, err
		}
		discount = coupon.DiscountFor(subtotal)
		if err := coupon.Use(); err != nil {
			return nil, err
		}
		if err := s.ledger.SaveCoupon(ctx, coupon); err != nil {
			return nil, err
		}
	}

	if input.PointsToUse > 0 {
		if input.PointsToUse > subtotal-discount {
			return nil, fmt.Errorf("points %d exceed payable amount %d: %w", input.PointsToUse, subtotal-discount, domain.ErrInvalidOrder)
		}
		if err := wallet.Deduct(input.PointsToUse); err != nil {
			return nil, err
		}
		if err := s.ledger.SaveWallet(ctx, wallet); err != nil {
			return nil, err
		}
	}
	return &reservation{items: items, discount: discount}, nil
}

// restoreResources puts back everything reserve took: stock, points, and the
// coupon. It runs inside the same transaction as the winning cancel.
func (s *Service) restoreResources(ctx context.Context, order *domain.Order) error {
	items := make([]domain.Item, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, item := range items {
		product, err := s.ledger.ProductForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if err := product.Restock(item.Quantity); err != nil {
			return err
		}
		if err := s.ledger.SaveProduct(ctx, product); err != nil {
			return err
		}
	}
	if order.PointsUsed > 0 {
		wallet, err := s.ledger.WalletForUpdate(ctx, order.OwnerRef)
		if err != nil {
			return err
		}
		if err := wallet.Refund(order.PointsUsed); err != nil {
			return err
		}
		if err := s.ledger.SaveWallet(ctx, wallet); err != nil {
			return err
		}
	}
	if order.CouponCode != "" {
		coupon, err := s.ledger.CouponByCode(ctx, order.OwnerRef, order.CouponCode)
		if err != nil {
			return err
		}
		coupon.Release()
		if err := s.ledger.SaveCoupon(ctx, coupon); err != nil {
			return err
		}
	}
	return nil
}

// cancelAndRestore cancels a pending order. Only the transition winner
// restores resources, so a concurrent settle cannot double-restore.
func (s *Service) cancelAndRestore(ctx context.Context, orderID int64) (bool, error) {
	return s.cancelFrom(ctx, orderID, domain.StatusPending)
}

func (s *Service) cancelFrom(ctx context.Context, orderID int64, from domain.Status) (bool, error) {
	var won bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		won, err = s.repo.Transition(ctx, orderID, from, domain.StatusCanceled)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		order, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return s.restoreResources(ctx, order)
	})
	if err != nil {
		return false, err
	}
	if won {
		if order, loadErr := s.repo.GetByID(ctx, orderID); loadErr == nil {
			s.events.OrderCanceled(ctx, order)
		}
		s.logger.Info("order canceled and resources restored", slog.Int64("order.id", orderID))
	}
	return won, nil
}

// completeOrder confirms payment via conditional transition; only the winner
// publishes the completion event.
func (s *Service) completeOrder(ctx context.Context, orderID int64) (bool, error) {
	won, err := s.repo.Transition(ctx, orderID, domain.StatusPending, domain.StatusCompleted)
	if err != nil {
		return false, err
	}
	if won {
		if order, loadErr := s.repo.GetByID(ctx, orderID); loadErr == nil {
			s.events.OrderCompleted(ctx, order)
		}
		s.logger.Info("order completed", slog.Int64("order.id", orderID))
	}
	return won, nil
}

// recoverAfterTimeout shortens the pending window after a submit timeout:
// wait out the grace period, then ask the gateway once what actually
// happened. No answer simply leaves the order to the reconciliation sweep.
func (s *Service) recoverAfterTimeout(ctx context.Context, order *domain.Order) {
	s.delayer.Delay(ctx, s.timeoutGrace)
	records, err := s.gateway.TransactionsByOrder(ctx, order.OwnerRef, order.ID)
	if err != nil {
		s.logger.Warn("post-timeout status query failed, order stays pending",
			slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
		return
	}
	if _, err := s.settleFromRecords(ctx, order, records, false); err != nil {
		s.logger.Error("post-timeout settlement failed",
			slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) ownedOrder(ctx context.Context, ownerRef string, orderID int64) (*domain.Order, error) {
	if ownerRef == "" {
		return nil, fmt.Errorf("owner reference is required: %w", ErrInvalidInput)
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapError(err)
	}
	if order.OwnerRef != ownerRef {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return order, nil
}

func (s *Service) viewByID(ctx context.Context, orderID int64) (*ports.OrderView, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapError(err)
	}
	return toView(order), nil
}

func validateCreateInput(input ports.CreateOrderInput) error {
	if input.OwnerRef == "" {
		return fmt.Errorf("owner reference is required: %w", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("at least one item is required: %w", ErrInvalidInput)
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive: %w", item.ProductID, ErrInvalidInput)
		}
	}
	if input.PointsToUse < 0 {
		return fmt.Errorf("points must not be negative: %w", ErrInvalidInput)
	}
	if !input.CardType.Valid() {
		return fmt.Errorf("unsupported card type %q: %w", input.CardType, ErrInvalidInput)
	}
	if input.CardNo == "" {
		return fmt.Errorf("card number is required: %w", ErrInvalidInput)
	}
	return nil
}

func toView(order *domain.Order) *ports.OrderView {
	items := make([]domain.Item, len(order.Items))
	copy(items, order.Items)
	return &ports.OrderView{
		ID:             order.ID,
		OwnerRef:       order.OwnerRef,
		Items:          items,
		CouponCode:     order.CouponCode,
		DiscountAmount: order.DiscountAmount,
		PointsUsed:     order.PointsUsed,
		TotalAmount:    order.TotalAmount,
		ChargeAmount:   order.ChargeAmount,
		Status:         order.Status,
		PaymentKey:     order.PaymentKey,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

type nopEvents struct{}

func (nopEvents) OrderCreated(context.Context, *domain.Order)   {}
func (nopEvents) OrderCompleted(context.Context, *domain.Order) {}
func (nopEvents) OrderCanceled(context.Context, *domain.Order)  {}
