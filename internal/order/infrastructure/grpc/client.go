package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/grpcjson"
)

type Client struct {
	conn *grpc.ClientConn
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
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Checkout(ctx context.Context, cartID string, method domain.PaymentMethod, discount decimal.Decimal) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	req := &CheckoutRequest{CartID: cartID, PaymentMethod: method, Discount: discount}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Checkout", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckoutLines sells lines without a station cart.
func (c *Client) CheckoutLines(ctx context.Context, lines []application.LineRequest, method domain.PaymentMethod, discount decimal.Decimal) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	req := &CheckoutRequest{Lines: lines, PaymentMethod: method, Discount: discount}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Checkout", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	out := new(GetOrderResponse)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetOrder", &GetOrderRequest{OrderID: id}, out); err != nil {
		return domain.Order{}, err
	}
	return out.Order, nil
}
