package domain

import (
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

const (
	EventStockCommitted = "StockCommitted"
	EventStockAdjusted  = "StockAdjusted"
	EventLowStock       = "LowStock"
)

type StockCommitted struct {
	Remaining map[catalog.ProductID]int `json:"remaining"`
}

type StockAdjusted struct {
	ProductID catalog.ProductID `json:"product_id"`
	Mode      AdjustMode        `json:"mode"`
	Quantity  int               `json:"quantity"`
	Resulting int               `json:"resulting"`
	Reason    string            `json:"reason"`
}

type LowStock struct {
	ProductID catalog.ProductID `json:"product_id"`
	Available int               `json:"available"`
	Threshold int               `json:"threshold"`
}

// CrossedLowThreshold reports a fall from above the threshold to at or below it.
func CrossedLowThreshold(before, after, threshold int) bool {
	return before > threshold && after <= threshold
}
