package application

import (
	"context"
	"errors"
	"log/slog"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/retry"
)

type Service struct {
	log          *slog.Logger
	ledger       Ledger
	policy       retry.Policy
	lowThreshold int
}

func NewService(log *slog.Logger, ledger Ledger, policy retry.Policy, lowThreshold int) *Service {
	return &Service{log: log, ledger: ledger, policy: policy, lowThreshold: lowThreshold}
}

// GetAvailable is a point-in-time read for display and cart hints only.
func (s *Service) GetAvailable(ctx context.Context, id catalog.ProductID) (int, error) {
	return s.ledger.Available(ctx, id)
}

func (s *Service) TryReserveAndCommit(ctx context.Context, ref string, req domain.Request) (domain.CommitResult, error) {
	if err := req.Validate(); err != nil {
		return domain.CommitResult{}, err
	}

	var res domain.CommitResult
	err := retry.Do(ctx, s.policy, isTransient, func(ctx context.Context, attempt int) error {
		var err error
		res, err = s.ledger.TryReserveAndCommit(ctx, ref, req)
		if err != nil && isTransient(err) {
			s.log.Warn("ledger commit conflict, retrying", "ref", ref, "attempt", attempt, "err", err)
		}
		return err
	})
	if err != nil {
		return domain.CommitResult{}, err
	}

	if !res.Committed {
		s.log.Info("stock admission rejected", "ref", ref, "shortfalls", len(res.Insufficient))
	}
	return res, nil
}

func (s *Service) AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error) {
	if err := adj.Validate(); err != nil {
		return 0, err
	}

	var qty int
	err := retry.Do(ctx, s.policy, isTransient, func(ctx context.Context, attempt int) error {
		var err error
		qty, err = s.ledger.AdjustStock(ctx, adj)
		if err != nil && isTransient(err) {
			s.log.Warn("stock adjustment conflict, retrying", "product_id", adj.ProductID, "attempt", attempt, "err", err)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("stock adjusted", "product_id", adj.ProductID, "mode", adj.Mode, "quantity", adj.Quantity, "resulting", qty, "reason", adj.Reason)
	return qty, nil
}

// Committed resolves a TryReserveAndCommit whose outcome was lost, for example
// when the deadline fired while the commit was in flight.
func (s *Service) Committed(ctx context.Context, ref string) (bool, error) {
	return s.ledger.Committed(ctx, ref)
}

func (s *Service) ListLowStock(ctx context.Context) ([]catalog.Product, error) {
	return s.ledger.ListLowStock(ctx, s.lowThreshold)
}

func (s *Service) LowStockThreshold() int { return s.lowThreshold }

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}
