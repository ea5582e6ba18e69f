package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/grpcjson"
)

type Client struct {
	cc *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpcjson.CallOption(),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn}, nil
}

func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) GetAvailable(ctx context.Context, id catalog.ProductID) (int, error) {
	var resp GetAvailableResponse
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetAvailable", &GetAvailableRequest{ProductID: id}, &resp); err != nil {
		return 0, fromStatus(err)
	}
	return resp.Available, nil
}

func (c *Client) AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error) {
	var resp AdjustStockResponse
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/AdjustStock", &AdjustStockRequest{Adjustment: adj}, &resp); err != nil {
		return 0, fromStatus(err)
	}
	return resp.Resulting, nil
}

func (c *Client) ListLowStock(ctx context.Context) (*ListLowStockResponse, error) {
	var resp ListLowStockResponse
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListLowStock", &ListLowStockRequest{}, &resp); err != nil {
		return nil, fromStatus(err)
	}
	return &resp, nil
}

// fromStatus restores the domain sentinels callers match on.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidAdjustment, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", domain.ErrTransient, st.Message())
	}
	return err
}
