package application

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

// Service serves point-in-time catalog snapshots. Checkout never trusts them;
// the ledger re-validates every quantity.
type Service struct {
	log   *slog.Logger
	repo  Repository
	cache Cache
	hub   Broadcaster
}

// NewService accepts a nil cache or hub when Redis or websockets are not wired.
func NewService(log *slog.Logger, repo Repository, cache Cache, hub Broadcaster) *Service {
	return &Service{log: log, repo: repo, cache: cache, hub: hub}
}

func (s *Service) ListActiveProducts(ctx context.Context) ([]domain.Listing, error) {
	products, err := s.products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0, len(products))
	for _, p := range products {
		out = append(out, domain.NewListing(p))
	}
	return out, nil
}

func (s *Service) products(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("catalog cache read failed", "err", err)
		} else if ok {
			return cached, nil
		}
	}

	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, products); err != nil {
			s.log.Warn("catalog cache write failed", "err", err)
		}
	}
	return products, nil
}

// Refresh drops the cached listing and tells stations which products changed.
func (s *Service) Refresh(ctx context.Context, ids ...domain.ProductID) {
	s.notify(ctx, domain.Notice{Type: domain.NoticeStockChanged, ProductIDs: ids})
}

func (s *Service) notify(ctx context.Context, n domain.Notice) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("catalog cache invalidate failed", "err", err)
		}
	}
	if s.hub != nil && len(n.ProductIDs) > 0 {
		s.hub.Broadcast(n)
	}
}

func (s *Service) LowStock(ctx context.Context, id domain.ProductID) {
	s.notify(ctx, domain.Notice{Type: domain.NoticeLowStock, ProductIDs: []domain.ProductID{id}})
}
