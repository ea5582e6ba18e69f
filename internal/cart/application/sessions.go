package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/pos-order-engine/internal/cart/domain"
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

var (
	ErrSessionNotFound    = errors.New("cart session not found")
	ErrCheckoutInProgress = errors.New("cart is being checked out")
	ErrEmptyCart          = errors.New("cart is empty")
)

// Products resolves a product with its current stock for price snapshots and
// advisory bounds.
type Products interface {
	Get(ctx context.Context, id catalog.ProductID) (catalog.Product, error)
}

type View struct {
	ID     string        `json:"cart_id"`
	Lines  []domain.Line `json:"lines"`
	Totals domain.Totals `json:"totals"`
}

type session struct {
	mu          sync.Mutex
	cart        *domain.Cart
	checkingOut bool
	// abandoned is set under mu when the session leaves the registry, so a
	// caller still holding the pointer sees ErrSessionNotFound.
	abandoned bool
}

// Sessions holds one cart per cashier station. Cart edits never perform I/O
// while holding a session lock.
type Sessions struct {
	log      *slog.Logger
	products Products
	taxRate  decimal.Decimal

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessions(log *slog.Logger, products Products, taxRate decimal.Decimal) *Sessions {
	return &Sessions{log: log, products: products, taxRate: taxRate, sessions: make(map[string]*session)}
}

func (s *Sessions) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{cart: domain.New(s.taxRate)}
	s.mu.Unlock()
	return id
}

func (s *Sessions) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Sessions) View(id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.abandoned {
		return View{}, ErrSessionNotFound
	}
	return view(id, sess.cart), nil
}

func (s *Sessions) Add(ctx context.Context, id string, productID catalog.ProductID, qty int) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return View{}, fmt.Errorf("product %d: %w", productID, err)
	}
	return s.edit(id, sess, func(c *domain.Cart) error { return c.AddOrIncrement(p, qty) })
}

func (s *Sessions) SetQuantity(id string, productID catalog.ProductID, qty int) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	return s.edit(id, sess, func(c *domain.Cart) error { return c.SetQuantity(productID, qty) })
}

func (s *Sessions) Remove(id string, productID catalog.ProductID) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	return s.edit(id, sess, func(c *domain.Cart) error {
		if !c.Remove(productID) {
			return domain.ErrLineNotFound
		}
		return nil
	})
}

// Abandon drops a Building cart. No ledger interaction has happened, so
// nothing needs undoing.
func (s *Sessions) Abandon(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.checkingOut {
		return ErrCheckoutInProgress
	}
	sess.abandoned = true
	delete(s.sessions, id)
	return nil
}

func (s *Sessions) edit(id string, sess *session, fn func(*domain.Cart) error) (View, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.abandoned {
		return View{}, ErrSessionNotFound
	}
	if sess.checkingOut {
		return View{}, ErrCheckoutInProgress
	}
	if err := fn(sess.cart); err != nil {
		return View{}, err
	}
	return view(id, sess.cart), nil
}

// BeginCheckout freezes the cart and returns its snapshot. Edits are refused
// until EndCheckout.
func (s *Sessions) BeginCheckout(id string) (domain.Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.abandoned {
		return domain.Snapshot{}, ErrSessionNotFound
	}
	if sess.checkingOut {
		return domain.Snapshot{}, ErrCheckoutInProgress
	}
	if sess.cart.IsEmpty() {
		return domain.Snapshot{}, ErrEmptyCart
	}
	sess.checkingOut = true
	return sess.cart.Snapshot(), nil
}

// EndCheckout unfreezes the cart, clearing it when the order committed.
func (s *Sessions) EndCheckout(id string, committed bool) {
	sess, err := s.get(id)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.checkingOut = false
	if committed {
		sess.cart.Clear()
	}
}

func view(id string, c *domain.Cart) View {
	return View{ID: id, Lines: c.Lines(), Totals: c.Totals()}
}
