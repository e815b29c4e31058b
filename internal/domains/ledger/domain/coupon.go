package domain

import (
	"errors"
	"fmt"
)

// ErrCouponUsed indicates an attempt to redeem a coupon a second time.
var ErrCouponUsed = errors.New("coupon already used")

// CouponKind selects the discount formula.
type CouponKind string

const (
	// CouponFixedAmount subtracts a flat amount from the subtotal.
	CouponFixedAmount CouponKind = "FIXED_AMOUNT"
	// CouponPercentage subtracts a percentage of the subtotal, rounded down.
	CouponPercentage CouponKind = "PERCENTAGE"
)

// UserCoupon is a single-use discount issued to one owner. Version guards
// concurrent redemption: saves are conditional on the loaded version.
type UserCoupon struct {
	ID       int64
	OwnerRef string
	Code     string
	Kind     CouponKind
	Amount   int64
	Rate     int64
	Used     bool
	Version  int64
}

// DiscountFor computes the discount this coupon grants against subtotal.
// The discount never exceeds the subtotal.
func (c *UserCoupon) DiscountFor(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	switch c.Kind {
	case CouponFixedAmount:
		discount = c.Amount
	case CouponPercentage:
		discount = subtotal * c.Rate / 100
	default:
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

// Use marks the coupon redeemed. Redeeming twice fails with ErrCouponUsed.
func (c *UserCoupon) Use() error {
	if c.Used {
		return fmt.Errorf("coupon %s: %w", c.Code, ErrCouponUsed)
	}
	c.Used = true
	return nil
}

// Release reverts a redemption when the order it paid for is canceled.
func (c *UserCoupon) Release() {
	c.Used = false
}
