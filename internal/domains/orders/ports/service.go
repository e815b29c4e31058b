package ports

import (
	"context"
	"time"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
)

// ItemInput selects a product and quantity for a new order.
type ItemInput struct {
	ProductID int64
	Quantity  int64
}

// CreateOrderInput carries one order placement request.
type CreateOrderInput struct {
	OwnerRef    string
	Items       []ItemInput
	CouponCode  string
	PointsToUse int64
	CardType    paymentdomain.CardType
	CardNo      string
}

// CallbackInput carries a payment gateway callback assertion. The asserted
// status is cross-validated against the gateway before it is believed.
type CallbackInput struct {
	OrderID        int64
	TransactionKey string
	Status         paymentdomain.TxStatus
	Reason         string
}

// OrderView is the read projection returned to callers.
type OrderView struct {
	ID             int64
	OwnerRef       string
	Items          []domain.Item
	CouponCode     string
	DiscountAmount int64
	PointsUsed     int64
	TotalAmount    int64
	ChargeAmount   int64
	Status         domain.Status
	PaymentKey     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	Examined     int
	Completed    int
	Canceled     int
	StillPending int
	Failed       int
}

// Service is the driving port of the orders context.
type Service interface {
	// CreateOrder reserves resources, persists the order, and submits payment.
	// A transient gateway outcome still succeeds: the order is returned in
	// PENDING and reconciliation settles it later.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	GetOrder(ctx context.Context, ownerRef string, orderID int64) (*OrderView, error)
	ListOrders(ctx context.Context, ownerRef string) ([]*OrderView, error)
	// CancelOrder abandons the order and restores its reserved resources.
	CancelOrder(ctx context.Context, ownerRef string, orderID int64) (*OrderView, error)

	// HandleCallback settles an order from a gateway callback.
	HandleCallback(ctx context.Context, input CallbackInput) error
	// ReconcileOrder settles one pending order against gateway truth.
	ReconcileOrder(ctx context.Context, orderID int64) error
	// ReconcilePending sweeps every pending order once.
	ReconcilePending(ctx context.Context) (ReconcileReport, error)
}
