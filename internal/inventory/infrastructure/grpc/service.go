// Package grpc exposes the stock ledger as pos.v1.StockLedger. Messages are
// plain structs carried by the JSON codec in pkg/grpcjson.
package grpc

import (
	"context"

	"google.golang.org/grpc"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
)

const ServiceName = "pos.v1.StockLedger"

type GetAvailableRequest struct {
	ProductID catalog.ProductID `json:"product_id"`
}

type GetAvailableResponse struct {
	ProductID catalog.ProductID `json:"product_id"`
	Available int               `json:"available"`
}

type AdjustStockRequest struct {
	Adjustment domain.Adjustment `json:"adjustment"`
}

type AdjustStockResponse struct {
	ProductID catalog.ProductID `json:"product_id"`
	Resulting int               `json:"resulting"`
}

type ListLowStockRequest struct{}

type ListLowStockResponse struct {
	Threshold int               `json:"threshold"`
	Products  []catalog.Listing `json:"products"`
}

// StockLedgerServer is implemented by Server; the indirection lets the
// service descriptor be checked against the handler set.
type StockLedgerServer interface {
	GetAvailable(context.Context, *GetAvailableRequest) (*GetAvailableResponse, error)
	AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error)
	ListLowStock(context.Context, *ListLowStockRequest) (*ListLowStockResponse, error)
}

func unary[Req any, Resp any](method string, call func(StockLedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(StockLedgerServer)
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
	HandlerType: (*StockLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetAvailable", StockLedgerServer.GetAvailable),
		unary("AdjustStock", StockLedgerServer.AdjustStock),
		unary("ListLowStock", StockLedgerServer.ListLowStock),
	},
	Metadata: "pos/v1/stock_ledger",
}
