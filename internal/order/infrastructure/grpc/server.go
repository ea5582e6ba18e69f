package grpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartapp "github.com/dmehra2102/pos-order-engine/internal/cart/application"
	cart "github.com/dmehra2102/pos-order-engine/internal/cart/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

type Till interface {
	CheckoutCart(ctx context.Context, cartID string, method domain.PaymentMethod, discount decimal.Decimal) (application.Result, error)
	CheckoutLines(ctx context.Context, lines []application.LineRequest, method domain.PaymentMethod, discount decimal.Decimal) (application.Result, error)
	Order(ctx context.Context, id int64) (domain.Order, error)
}

type Server struct {
	log  *slog.Logger
	till Till
}

func NewServer(log *slog.Logger, till Till) *Server {
	return &Server{log: log, till: till}
}

func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Checkout answers Committed and Rejected outcomes with a response; every
// other outcome is a status error.
func (s *Server) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	var res application.Result
	var err error
	if req.CartID != "" {
		res, err = s.till.CheckoutCart(ctx, req.CartID, req.PaymentMethod, req.Discount)
	} else {
		res, err = s.till.CheckoutLines(ctx, req.Lines, req.PaymentMethod, req.Discount)
	}
	if err != nil {
		s.log.Warn("rpc checkout failed", "cart_id", req.CartID, "state", res.State, "err", err)
		return nil, toStatus(err)
	}
	return &res, nil
}

func (s *Server) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	o, err := s.till.Order(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetOrderResponse{Order: o}, nil
}

func toStatus(err error) error {
	var capacity *cart.CapacityError
	switch {
	case errors.Is(err, cartapp.ErrSessionNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCheckout):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, cartapp.ErrEmptyCart), errors.Is(err, cartapp.ErrCheckoutInProgress), errors.As(err, &capacity):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrCheckoutTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrInvariantViolation), errors.Is(err, domain.ErrCompensationFailed):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
