package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found or inactive")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrEmptyRequest      = errors.New("reservation request has no products")
	ErrInvalidAdjustment = errors.New("invalid stock adjustment")
	// ErrTransient marks lock timeouts and serialization conflicts that are safe to retry.
	ErrTransient = errors.New("transient ledger conflict")
)

// MaxStock is the largest quantity a product can hold; stock_quantity is an
// INTEGER column.
const MaxStock = math.MaxInt32

// Request maps each product to the quantity a checkout needs from it.
type Request map[catalog.ProductID]int

func (r Request) Validate() error {
	if len(r) == 0 {
		return ErrEmptyRequest
	}
	for id, qty := range r {
		if qty < 1 {
			return fmt.Errorf("product %d: %w", id, ErrInvalidQuantity)
		}
	}
	return nil
}

// ProductIDs returns the request's products in ascending order, the lock
// order every ledger implementation uses.
func (r Request) ProductIDs() []catalog.ProductID {
	ids := make([]catalog.ProductID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type Shortfall struct {
	ProductID catalog.ProductID `json:"product_id"`
	Requested int               `json:"requested"`
	Available int               `json:"available"`
}

type CommitResult struct {
	Committed    bool        `json:"committed"`
	Insufficient []Shortfall `json:"insufficient_products,omitempty"`
	// Remaining holds post-commit quantities for committed batches.
	Remaining map[catalog.ProductID]int `json:"remaining,omitempty"`
}

func Committed(remaining map[catalog.ProductID]int) CommitResult {
	return CommitResult{Committed: true, Remaining: remaining}
}

func Rejected(shortfalls []Shortfall) CommitResult {
	sort.Slice(shortfalls, func(i, j int) bool { return shortfalls[i].ProductID < shortfalls[j].ProductID })
	return CommitResult{Insufficient: shortfalls}
}

// InsufficientStockError is returned by adjustments that would drive stock negative.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("product %d: available %d, requested %d", s.ProductID, s.Available, s.Requested))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

type AdjustMode string

const (
	AdjustAdd    AdjustMode = "add"
	AdjustRemove AdjustMode = "remove"
	AdjustSet    AdjustMode = "set"
)

type Adjustment struct {
	ProductID catalog.ProductID `json:"product_id"`
	Mode      AdjustMode        `json:"mode"`
	Quantity  int               `json:"quantity"`
	Reason    string            `json:"reason"`
	// OrderNumber links compensating adjustments to the failed checkout.
	OrderNumber string `json:"order_number,omitempty"`
}

// AdjustDelta expresses a signed change as an add or remove adjustment.
func AdjustDelta(id catalog.ProductID, delta int, reason string) Adjustment {
	if delta < 0 {
		return Adjustment{ProductID: id, Mode: AdjustRemove, Quantity: -delta, Reason: reason}
	}
	return Adjustment{ProductID: id, Mode: AdjustAdd, Quantity: delta, Reason: reason}
}

func (a Adjustment) Validate() error {
	if a.Quantity < 0 {
		return fmt.Errorf("%w: quantity %d is negative", ErrInvalidAdjustment, a.Quantity)
	}
	if a.Quantity > MaxStock {
		return fmt.Errorf("%w: quantity %d exceeds %d", ErrInvalidAdjustment, a.Quantity, MaxStock)
	}
	switch a.Mode {
	case AdjustAdd, AdjustRemove, AdjustSet:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidAdjustment, a.Mode)
	}
	if strings.TrimSpace(a.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidAdjustment)
	}
	return nil
}

// Apply returns the quantity after the adjustment, or an InsufficientStockError
// when a removal exceeds what is on hand.
func (a Adjustment) Apply(current int) (int, error) {
	switch a.Mode {
	case AdjustAdd:
		if a.Quantity > MaxStock-current {
			return current, fmt.Errorf("%w: adding %d to %d exceeds %d", ErrInvalidAdjustment, a.Quantity, current, MaxStock)
		}
		return current + a.Quantity, nil
	case AdjustRemove:
		if a.Quantity > current {
			return current, &InsufficientStockError{Shortfalls: []Shortfall{{ProductID: a.ProductID, Requested: a.Quantity, Available: current}}}
		}
		return current - a.Quantity, nil
	case AdjustSet:
		if a.Quantity < 0 || a.Quantity > MaxStock {
			return current, fmt.Errorf("%w: quantity %d out of range", ErrInvalidAdjustment, a.Quantity)
		}
		return a.Quantity, nil
	}
	return current, fmt.Errorf("%w: unknown mode %q", ErrInvalidAdjustment, a.Mode)
}

// Movement is one journal entry; every ledger mutation appends one per product.
type Movement struct {
	ProductID   catalog.ProductID `json:"product_id"`
	Delta       int               `json:"delta"`
	Resulting   int               `json:"resulting"`
	Reason      string            `json:"reason"`
	OrderNumber string            `json:"order_number,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

const (
	ReasonCheckout = "checkout"
)
