package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoupon_DiscountFor_FixedAmount(t *testing.T) {
	c := UserCoupon{Code: "WELCOME", Kind: CouponFixedAmount, Amount: 5_000}

	require.Equal(t, int64(5_000), c.DiscountFor(20_000))
}

func TestCoupon_DiscountFor_FixedAmountCappedAtSubtotal(t *testing.T) {
	c := UserCoupon{Code: "WELCOME", Kind: CouponFixedAmount, Amount: 5_000}

	require.Equal(t, int64(3_000), c.DiscountFor(3_000))
}

func TestCoupon_DiscountFor_PercentageRoundsDown(t *testing.T) {
	c := UserCoupon{Code: "TEN", Kind: CouponPercentage, Rate: 10}

	require.Equal(t, int64(999), c.DiscountFor(9_999))
}

func TestCoupon_DiscountFor_ZeroSubtotal(t *testing.T) {
	c := UserCoupon{Code: "TEN", Kind: CouponPercentage, Rate: 10}

	require.Equal(t, int64(0), c.DiscountFor(0))
	require.Equal(t, int64(0), c.DiscountFor(-100))
}

func TestCoupon_DiscountFor_UnknownKind(t *testing.T) {
	c := UserCoupon{Code: "ODD", Kind: CouponKind("MYSTERY"), Amount: 1_000}

	require.Equal(t, int64(0), c.DiscountFor(10_000))
}

func TestCoupon_Use_SecondRedemptionFails(t *testing.T) {
	c := UserCoupon{Code: "ONCE", Kind: CouponFixedAmount, Amount: 1_000}

	require.NoError(t, c.Use())
	require.True(t, c.Used)

	err := c.Use()
	require.ErrorIs(t, err, ErrCouponUsed)
}

func TestCoupon_Release_AllowsReuse(t *testing.T) {
	c := UserCoupon{Code: "ONCE", Kind: CouponFixedAmount, Amount: 1_000}

	require.NoError(t, c.Use())
	c.Release()
	require.NoError(t, c.Use())
}
