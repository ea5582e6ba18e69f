package domain

import (
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

const EventOrderCommitted = "OrderCommitted"

type OrderCommittedLine struct {
	ProductID catalog.ProductID `json:"product_id"`
	Quantity  int               `json:"quantity"`
}

type OrderCommitted struct {
	OrderID       int64                `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentMethod PaymentMethod        `json:"payment_method"`
	Lines         []OrderCommittedLine `json:"lines"`
	CreatedAt     time.Time            `json:"created_at"`
}

func NewOrderCommitted(o Order) OrderCommitted {
	lines := make([]OrderCommittedLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, OrderCommittedLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderCommitted{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Lines:         lines,
		CreatedAt:     o.CreatedAt,
	}
}
