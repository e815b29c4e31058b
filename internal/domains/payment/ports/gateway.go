// Package ports declares the payment gateway contract.
package ports

import (
	"context"

	"github.com/commercekit/settlement/internal/domains/payment/domain"
)

// SubmitRequest carries one charge submission to the gateway.
type SubmitRequest struct {
	OwnerRef    string
	OrderID     int64
	CardType    domain.CardType
	CardNo      string
	Amount      int64
	CallbackURL string
}

// Gateway is the outbound payment port.
//
// Submit performs exactly one attempt; callers never retry it because a
// timed-out charge may have landed. All outcomes are normalized into the
// AttemptResult sum, so Submit itself does not fail.
//
// TransactionsByOrder is the read-only status query used by callbacks and
// reconciliation. It is safe to retry and the adapter does so internally.
type Gateway interface {
	Submit(ctx context.Context, req SubmitRequest) domain.AttemptResult
	TransactionsByOrder(ctx context.Context, ownerRef string, orderID int64) ([]domain.TransactionRecord, error)
}
