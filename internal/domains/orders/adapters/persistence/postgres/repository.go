// Package postgres persists the order aggregate with GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	platformpostgres "github.com/commercekit/settlement/internal/platform/postgres"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is the GORM-backed order repository. Calls join the transaction
// bound to the context when one is present.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithClock overrides the time source used for transition timestamps.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository creates a repository over the given connection.
func NewRepository(db *gorm.DB, opts ...RepositoryOption) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ItemRecord is the JSON shape of one order line inside the orders row.
type ItemRecord struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// OrderRecord is the persistence shape for orders. ProductIDs denormalizes
// the line items into an array column so admin queries can find orders by
// product without unpacking the JSON.
type OrderRecord struct {
	ID             int64         `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerRef       string        `gorm:"column:owner_ref;not null;index:idx_orders_owner"`
	Items          []ItemRecord  `gorm:"column:items;serializer:json;type:jsonb;not null"`
	ProductIDs     pq.Int64Array `gorm:"column:product_ids;type:bigint[]"`
	CouponCode     string        `gorm:"column:coupon_code"`
	DiscountAmount int64         `gorm:"column:discount_amount;not null"`
	PointsUsed     int64         `gorm:"column:points_used;not null"`
	TotalAmount    int64         `gorm:"column:total_amount;not null"`
	ChargeAmount   int64         `gorm:"column:charge_amount;not null"`
	Status         string        `gorm:"column:status;not null;index:idx_orders_status"`
	PaymentKey     string        `gorm:"column:payment_key"`
	CreatedAt      time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;not null"`
}

// TableName maps the record to the orders table.
func (OrderRecord) TableName() string { return "orders" }

// Create persists a new order and assigns its id.
func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	record := toRecord(order)
	if err := platformpostgres.TxFrom(ctx, r.db).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return toDomain(record), nil
}

// GetByID loads one order.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var record OrderRecord
	err := platformpostgres.TxFrom(ctx, r.db).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return toDomain(record), nil
}

// ListByOwner returns the owner's orders sorted by id.
func (r *Repository) ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error) {
	var records []OrderRecord
	err := platformpostgres.TxFrom(ctx, r.db).
		Where("owner_ref = ?", ownerRef).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", ownerRef, err)
	}
	return toDomainSlice(records), nil
}

// ListByStatus returns all orders in the given status sorted by id.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	var records []OrderRecord
	err := platformpostgres.TxFrom(ctx, r.db).
		Where("status = ?", string(status)).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list %s orders: %w", status, err)
	}
	return toDomainSlice(records), nil
}

// Transition conditionally moves the order between statuses with a guarded
// update; the affected-rows count decides the winner.
func (r *Repository) Transition(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	tx := platformpostgres.TxFrom(ctx, r.db)
	result := tx.Model(&OrderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": r.now()})
	if result.Error != nil {
		return false, fmt.Errorf("transition order %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	var count int64
	if err := tx.Model(&OrderRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("transition order %d: %w", id, err)
	}
	if count == 0 {
		return false, fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
	}
	return false, nil
}

// SetPaymentKey records the gateway transaction key.
func (r *Repository) SetPaymentKey(ctx context.Context, id int64, key string) error {
	result := platformpostgres.TxFrom(ctx, r.db).Model(&OrderRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_key": key, "updated_at": r.now()})
	if result.Error != nil {
		return fmt.Errorf("set payment key on order %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", id, ports.ErrOrderNotFound)
	}
	return nil
}

func toRecord(order *domain.Order) OrderRecord {
	items := make([]ItemRecord, 0, len(order.Items))
	productIDs := make(pq.Int64Array, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemRecord{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
		productIDs = append(productIDs, item.ProductID)
	}
	return OrderRecord{
		ID:             order.ID,
		OwnerRef:       order.OwnerRef,
		Items:          items,
		ProductIDs:     productIDs,
		CouponCode:     order.CouponCode,
		DiscountAmount: order.DiscountAmount,
		PointsUsed:     order.PointsUsed,
		TotalAmount:    order.TotalAmount,
		ChargeAmount:   order.ChargeAmount,
		Status:         string(order.Status),
		PaymentKey:     order.PaymentKey,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func toDomain(record OrderRecord) *domain.Order {
	items := make([]domain.Item, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, domain.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return &domain.Order{
		ID:             record.ID,
		OwnerRef:       record.OwnerRef,
		Items:          items,
		CouponCode:     record.CouponCode,
		DiscountAmount: record.DiscountAmount,
		PointsUsed:     record.PointsUsed,
		TotalAmount:    record.TotalAmount,
		ChargeAmount:   record.ChargeAmount,
		Status:         domain.Status(record.Status),
		PaymentKey:     record.PaymentKey,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func toDomainSlice(records []OrderRecord) []*domain.Order {
	orders := make([]*domain.Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, toDomain(record))
	}
	return orders
}
