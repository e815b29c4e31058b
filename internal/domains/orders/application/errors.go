package application

import (
	"errors"
	"fmt"

	ledgerdomain "github.com/commercekit/settlement/internal/domains/ledger/domain"
	ledgerports "github.com/commercekit/settlement/internal/domains/ledger/ports"
	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

var (
	// ErrInvalidInput indicates a request that fails validation or references
	// unknown products, wallets, or coupons.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates the order does not exist or belongs to someone else.
	ErrNotFound = errors.New("not found")
	// ErrResourceExhausted indicates stock, balance, or coupon could not cover
	// the request.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrOrderConflict indicates the order's state forbids the operation.
	ErrOrderConflict = errors.New("order state conflict")
	// ErrPaymentRejected indicates the gateway definitively declined the charge.
	ErrPaymentRejected = errors.New("payment rejected")
)

// PaymentDeclinedError carries the gateway's decline code alongside
// ErrPaymentRejected for errors.Is matching.
type PaymentDeclinedError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment rejected by gateway: %s (%s)", e.Code, e.Message)
}

// Unwrap lets errors.Is(err, ErrPaymentRejected) succeed.
func (e *PaymentDeclinedError) Unwrap() error {
	return ErrPaymentRejected
}

// mapError folds domain and driven-port errors into the application's error
// vocabulary so transport adapters have a stable set to translate.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ports.ErrOrderNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, ledgerports.ErrProductNotFound),
		errors.Is(err, ledgerports.ErrWalletNotFound),
		errors.Is(err, ledgerports.ErrCouponNotFound):
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	case errors.Is(err, ledgerdomain.ErrInsufficientStock),
		errors.Is(err, ledgerdomain.ErrInsufficientBalance),
		errors.Is(err, ledgerdomain.ErrCouponUsed),
		errors.Is(err, ledgerports.ErrCouponConflict):
		return fmt.Errorf("%w: %s", ErrResourceExhausted, err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%w: %s", ErrOrderConflict, err)
	default:
		return err
	}
}
