package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/commercekit/settlement/internal/domains/orders/domain"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
)

type disposition int

const (
	dispPending disposition = iota
	dispCompleted
	dispCanceled
)

// ReconcileOrder settles one order against gateway truth. Terminal orders
// are left alone; a failed gateway query propagates so the caller can retry.
func (s *Service) ReconcileOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return mapError(err)
	}
	if order.Status.Terminal() {
		return nil
	}
	records, err := s.gateway.TransactionsByOrder(ctx, order.OwnerRef, order.ID)
	if err != nil {
		return fmt.Errorf("reconcile order %d: %w", orderID, err)
	}
	if _, err := s.settleFromRecords(ctx, order, records, true); err != nil {
		return mapError(err)
	}
	return nil
}

// ReconcilePending sweeps every pending order once. Each order settles
// independently: one failure is counted and logged, never aborting the sweep.
func (s *Service) ReconcilePending(ctx context.Context) (ports.ReconcileReport, error) {
	pending, err := s.repo.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return ports.ReconcileReport{}, mapError(err)
	}

	report := ports.ReconcileReport{Examined: len(pending)}
	for _, order := range pending {
		records, err := s.gateway.TransactionsByOrder(ctx, order.OwnerRef, order.ID)
		if err != nil {
			report.Failed++
			s.logger.Warn("reconciliation query failed for order",
				slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
			continue
		}
		disp, err := s.settleFromRecords(ctx, order, records, true)
		if err != nil {
			report.Failed++
			s.logger.Warn("reconciliation settlement failed for order",
				slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
			continue
		}
		switch disp {
		case dispCompleted:
			report.Completed++
		case dispCanceled:
			report.Canceled++
		default:
			report.StillPending++
		}
	}
	s.logger.Info("reconciliation sweep finished",
		slog.Int("examined", report.Examined),
		slog.Int("completed", report.Completed),
		slog.Int("canceled", report.Canceled),
		slog.Int("still_pending", report.StillPending),
		slog.Int("failed", report.Failed))
	return report, nil
}

// settleFromRecords applies the authoritative gateway record to a pending
// order. With abandonIfMissing set, an order old enough to have no gateway
// record at all is treated as never-submitted and canceled.
func (s *Service) settleFromRecords(ctx context.Context, order *domain.Order, records []paymentdomain.TransactionRecord, abandonIfMissing bool) (disposition, error) {
	latest, ok := paymentdomain.Latest(records)
	if !ok {
		if abandonIfMissing && s.now().Sub(order.CreatedAt) >= s.abandonAfter {
			s.logger.Info("abandoning pending order with no gateway record",
				slog.Int64("order.id", order.ID))
			won, err := s.cancelAndRestore(ctx, order.ID)
			if err != nil {
				return dispPending, err
			}
			if won {
				return dispCanceled, nil
			}
		}
		return dispPending, nil
	}

	switch latest.Status {
	case paymentdomain.TxSuccess:
		if latest.TransactionKey != "" && latest.TransactionKey != order.PaymentKey {
			if err := s.repo.SetPaymentKey(ctx, order.ID, latest.TransactionKey); err != nil {
				s.logger.Error("failed to record payment key",
					slog.Int64("order.id", order.ID), slog.String("error", err.Error()))
			}
		}
		if _, err := s.completeOrder(ctx, order.ID); err != nil {
			return dispPending, err
		}
		return dispCompleted, nil
	case paymentdomain.TxFailed:
		if _, err := s.cancelAndRestore(ctx, order.ID); err != nil {
			return dispPending, err
		}
		return dispCanceled, nil
	default:
		return dispPending, nil
	}
}
