// Package grpc exposes checkout as pos.v1.Checkout over the JSON codec.
package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

const ServiceName = "pos.v1.Checkout"

// CheckoutRequest names a station cart, or carries the lines to sell when
// CartID is empty.
type CheckoutRequest struct {
	CartID        string                    `json:"cart_id,omitempty"`
	Lines         []application.LineRequest `json:"lines,omitempty"`
	PaymentMethod domain.PaymentMethod      `json:"payment_method"`
	Discount      decimal.Decimal           `json:"discount"`
}

type CheckoutResponse = application.Result

type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

type GetOrderResponse struct {
	Order domain.Order `json:"order"`
}

type CheckoutServer interface {
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
}

func unary[Req any, Resp any](method string, call func(CheckoutServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CheckoutServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Checkout", CheckoutServer.Checkout),
		unary("GetOrder", CheckoutServer.GetOrder),
	},
	Metadata: "pos/v1/checkout",
}
