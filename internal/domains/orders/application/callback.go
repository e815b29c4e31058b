package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
)

// HandleCallback settles an order from a gateway callback. The asserted
// status is never trusted on its own: the gateway is re-queried and its
// record wins on mismatch. Only when the query fails or has no record does
// the asserted status apply.
func (s *Service) HandleCallback(ctx context.Context, input ports.CallbackInput) error {
	if err := validateCallbackInput(input); err != nil {
		return err
	}
	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return mapError(err)
	}
	if order.Status.Terminal() {
		s.logger.Info("callback for settled order ignored",
			slog.Int64("order.id", order.ID), slog.String("status", string(order.Status)))
		return nil
	}

	records, queryErr := s.gateway.TransactionsByOrder(ctx, order.OwnerRef, order.ID)
	if queryErr != nil || len(records) == 0 {
		if queryErr != nil {
			s.logger.Warn("callback verification query failed, applying asserted status",
				slog.Int64("order.id", order.ID), slog.String("error", queryErr.Error()))
		}
		records = []paymentdomain.TransactionRecord{{
			TransactionKey: input.TransactionKey,
			Status:         input.Status,
			Reason:         input.Reason,
		}}
	} else if latest, ok := paymentdomain.Latest(records); ok && latest.Status != input.Status {
		s.logger.Warn("callback status disagrees with gateway record, gateway wins",
			slog.Int64("order.id", order.ID),
			slog.String("asserted", string(input.Status)),
			slog.String("verified", string(latest.Status)))
	}

	if _, err := s.settleFromRecords(ctx, order, records, false); err != nil {
		return mapError(err)
	}
	return nil
}

func validateCallbackInput(input ports.CallbackInput) error {
	if input.OrderID <= 0 {
		return fmt.Errorf("order id is required: %w", ErrInvalidInput)
	}
	if input.TransactionKey == "" {
		return fmt.Errorf("transaction key is required: %w", ErrInvalidInput)
	}
	switch input.Status {
	case paymentdomain.TxPending, paymentdomain.TxSuccess, paymentdomain.TxFailed:
		return nil
	default:
		return fmt.Errorf("unknown transaction status %q: %w", input.Status, ErrInvalidInput)
	}
}
