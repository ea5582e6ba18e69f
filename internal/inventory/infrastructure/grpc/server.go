package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
)

// Ledger is the subset of the inventory service the RPC surface needs.
type Ledger interface {
	GetAvailable(ctx context.Context, id catalog.ProductID) (int, error)
	AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error)
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
	LowStockThreshold() int
}

// Refresher is told which products changed after an adjustment.
type Refresher interface {
	Refresh(ctx context.Context, ids ...catalog.ProductID)
}

type Server struct {
	log       *slog.Logger
	ledger    Ledger
	refresher Refresher
}

func NewServer(log *slog.Logger, ledger Ledger, refresher Refresher) *Server {
	return &Server{log: log, ledger: ledger, refresher: refresher}
}

func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) GetAvailable(ctx context.Context, req *GetAvailableRequest) (*GetAvailableResponse, error) {
	qty, err := s.ledger.GetAvailable(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetAvailableResponse{ProductID: req.ProductID, Available: qty}, nil
}

func (s *Server) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*AdjustStockResponse, error) {
	qty, err := s.ledger.AdjustStock(ctx, req.Adjustment)
	if err != nil {
		return nil, toStatus(err)
	}
	if s.refresher != nil {
		s.refresher.Refresh(ctx, req.Adjustment.ProductID)
	}
	return &AdjustStockResponse{ProductID: req.Adjustment.ProductID, Resulting: qty}, nil
}

func (s *Server) ListLowStock(ctx context.Context, _ *ListLowStockRequest) (*ListLowStockResponse, error) {
	products, err := s.ledger.ListLowStock(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]catalog.Listing, 0, len(products))
	for _, p := range products {
		out = append(out, catalog.NewListing(p))
	}
	return &ListLowStockResponse{Threshold: s.ledger.LowStockThreshold(), Products: out}, nil
}

func toStatus(err error) error {
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidAdjustment), errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &insufficient):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrTransient):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
