package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cart "github.com/dmehra2102/pos-order-engine/internal/cart/domain"
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	"github.com/dmehra2102/pos-order-engine/internal/receipt"
)

const ReasonCompensation = "checkout compensation"

type Config struct {
	// Timeout bounds the ledger commit plus order persistence.
	Timeout time.Duration
	// CompensationTimeout bounds the stock restore that runs after a failure,
	// independently of Timeout.
	CompensationTimeout time.Duration
	NumberAttempts      int
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, CompensationTimeout: 10 * time.Second, NumberAttempts: 3}
}

type CheckoutRequest struct {
	Cart          cart.Snapshot
	PaymentMethod domain.PaymentMethod
	Discount      decimal.Decimal
}

// Result is the outcome of a checkout. Rejected is an expected outcome and
// is returned with a nil error; Failed always comes with the causing error.
type Result struct {
	State      domain.CheckoutState  `json:"state"`
	Order      *domain.Order         `json:"order,omitempty"`
	Receipt    *receipt.Receipt      `json:"receipt,omitempty"`
	Shortfalls []inventory.Shortfall `json:"insufficient_products,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	// Path lists every state the checkout passed through, ending in State.
	Path []domain.CheckoutState `json:"path,omitempty"`
}

type Processor struct {
	log       *slog.Logger
	ledger    StockLedger
	store     OrderStore
	numbers   domain.NumberGenerator
	refresher Refresher
	cfg       Config
	tracer    trace.Tracer
	now       func() time.Time
}

func NewProcessor(log *slog.Logger, ledger StockLedger, store OrderStore, numbers domain.NumberGenerator, refresher Refresher, cfg Config) *Processor {
	if cfg.NumberAttempts < 1 {
		cfg.NumberAttempts = 1
	}
	return &Processor{
		log:       log,
		ledger:    ledger,
		store:     store,
		numbers:   numbers,
		refresher: refresher,
		cfg:       cfg,
		tracer:    otel.Tracer("order-processor"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout runs Validating → Committing → Committed, or ends in Rejected or
// Failed. Invalid input is refused before the ledger is touched. Once the
// ledger has decremented stock, any failure restores it before returning.
func (p *Processor) Checkout(ctx context.Context, req CheckoutRequest) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "Checkout")
	defer span.End()

	m := &machine{log: p.log, span: span, state: domain.StateBuilding, path: []domain.CheckoutState{domain.StateBuilding}}
	res, err := p.checkout(ctx, span, m, req)
	m.finish(&res)
	return res, err
}

// machine walks the checkout state table, recording each step on the span.
type machine struct {
	log   *slog.Logger
	span  trace.Span
	state domain.CheckoutState
	path  []domain.CheckoutState
}

func (m *machine) to(next domain.CheckoutState) {
	if !m.state.CanTransition(next) {
		m.log.Error("illegal checkout transition", "from", m.state, "to", next)
		m.span.SetStatus(codes.Error, "illegal transition")
	}
	m.span.AddEvent("transition", trace.WithAttributes(attribute.String("from", string(m.state)), attribute.String("to", string(next))))
	m.state = next
	m.path = append(m.path, next)
}

func (m *machine) finish(res *Result) {
	if res.State != m.state {
		m.to(res.State)
	}
	m.span.SetAttributes(attribute.String("state", string(m.state)))
	res.Path = m.path
}

func (p *Processor) checkout(ctx context.Context, span trace.Span, m *machine, req CheckoutRequest) (Result, error) {
	o, err := p.prepare(req)
	if err != nil {
		span.SetStatus(codes.Error, "invalid checkout")
		return Result{State: domain.StateBuilding, Reason: err.Error()}, err
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	o.Number = p.numbers.Next(p.now())
	ref := o.Number
	span.SetAttributes(attribute.String("order_number", ref), attribute.Int("lines", len(o.Items)))

	m.to(domain.StateValidating)
	res, err := p.ledger.TryReserveAndCommit(ctx, ref, o.Quantities())
	if err != nil {
		return p.ledgerFailed(ctx, span, o, err)
	}
	if !res.Committed {
		p.log.Info("checkout rejected", "ref", ref, "shortfalls", res.Insufficient)
		return Result{State: domain.StateRejected, Shortfalls: res.Insufficient, Reason: "insufficient stock"}, nil
	}

	m.to(domain.StateCommitting)
	saved, err := p.persist(ctx, &o)
	if err != nil {
		return p.fail(ctx, span, o, err)
	}

	p.log.Info("checkout committed", "order_id", saved.ID, "order_number", saved.Number, "total", saved.TotalAmount.StringFixed(2), "payment_method", saved.PaymentMethod)
	span.SetAttributes(attribute.Int64("order_id", saved.ID))
	return p.committed(context.WithoutCancel(ctx), saved), nil
}

// committed projects the receipt and refreshes catalog views. Neither can
// undo a durable order, so their failures are only logged.
func (p *Processor) committed(ctx context.Context, saved domain.Order) Result {
	result := Result{State: domain.StateCommitted, Order: &saved}
	if r, err := receipt.Project(saved); err != nil {
		p.log.Error("receipt projection failed", "order_number", saved.Number, "err", err)
	} else {
		result.Receipt = &r
	}
	if p.refresher != nil {
		ids := make([]catalog.ProductID, 0, len(saved.Items))
		for _, it := range saved.Items {
			ids = append(ids, it.ProductID)
		}
		p.refresher.Refresh(ctx, ids...)
	}
	return result
}

func (p *Processor) prepare(req CheckoutRequest) (domain.Order, error) {
	if len(req.Cart.Lines) == 0 {
		return domain.Order{}, fmt.Errorf("%w: cart is empty", domain.ErrInvalidCheckout)
	}
	method, err := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidCheckout, err)
	}
	seen := make(map[catalog.ProductID]bool, len(req.Cart.Lines))
	items := make([]domain.OrderItem, 0, len(req.Cart.Lines))
	for _, l := range req.Cart.Lines {
		if l.ProductID <= 0 {
			return domain.Order{}, fmt.Errorf("%w: product id %d", domain.ErrInvalidCheckout, l.ProductID)
		}
		if l.Quantity < 1 {
			return domain.Order{}, fmt.Errorf("%w: product %d quantity %d", domain.ErrInvalidCheckout, l.ProductID, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return domain.Order{}, fmt.Errorf("%w: product %d has a negative price", domain.ErrInvalidCheckout, l.ProductID)
		}
		if seen[l.ProductID] {
			return domain.Order{}, fmt.Errorf("%w: product %d appears twice", domain.ErrInvalidCheckout, l.ProductID)
		}
		seen[l.ProductID] = true
		items = append(items, domain.NewOrderItem(l.ProductID, l.Name, l.Quantity, l.UnitPrice))
	}

	o, err := domain.NewOrder(items, req.Cart.TaxRate, req.Discount, method, p.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCheckout) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidCheckout, err)
	}
	return o, nil
}

// persist writes the order, drawing a fresh number whenever the store reports
// a collision. The ledger is never re-invoked here.
func (p *Processor) persist(ctx context.Context, o *domain.Order) (domain.Order, error) {
	var err error
	for attempt := 1; attempt <= p.cfg.NumberAttempts; attempt++ {
		if err = o.Verify(); err != nil {
			return domain.Order{}, err
		}
		var saved domain.Order
		saved, err = p.store.CreateOrder(ctx, *o)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return domain.Order{}, err
		}
		if attempt == p.cfg.NumberAttempts {
			break
		}
		p.log.Warn("order number collision, regenerating", "order_number", o.Number, "attempt", attempt)
		o.Number = p.numbers.Next(p.now())
	}
	return domain.Order{}, fmt.Errorf("order number retries exhausted after %d attempts: %w", p.cfg.NumberAttempts, err)
}

// ledgerFailed handles an error from TryReserveAndCommit. Input errors leave
// stock untouched. Any other error may have come back after the ledger
// committed (a deadline during commit), so the journal is consulted and a
// decrement found there is restored.
func (p *Processor) ledgerFailed(ctx context.Context, span trace.Span, o domain.Order, err error) (Result, error) {
	ref := o.Number
	span.RecordError(err)
	span.SetStatus(codes.Error, "ledger")
	if errors.Is(err, inventory.ErrProductNotFound) || errors.Is(err, inventory.ErrInvalidQuantity) || errors.Is(err, inventory.ErrEmptyRequest) {
		return Result{State: domain.StateFailed, Reason: err.Error()}, fmt.Errorf("%w: %w", domain.ErrInvalidCheckout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrCheckoutTimeout, err)
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CompensationTimeout)
	defer cancel()
	committed, lerr := p.ledger.Committed(dctx, ref)
	if lerr != nil {
		p.log.Error("ledger outcome unknown", "ref", ref, "cause", err, "err", lerr)
		return Result{State: domain.StateFailed, Reason: err.Error()}, errors.Join(err, fmt.Errorf("%w: ledger lookup: %w", domain.ErrCompensationFailed, lerr))
	}
	if !committed {
		p.log.Error("checkout failed in ledger", "ref", ref, "err", err)
		return Result{State: domain.StateFailed, Reason: err.Error()}, err
	}

	p.log.Warn("ledger committed despite error, restoring stock", "ref", ref, "err", err)
	if cerr := p.compensate(dctx, o); cerr != nil {
		p.log.Error("stock compensation failed", "ref", ref, "cause", err, "err", cerr)
		return Result{State: domain.StateFailed, Reason: err.Error()}, errors.Join(err, fmt.Errorf("%w: %w", domain.ErrCompensationFailed, cerr))
	}
	return Result{State: domain.StateFailed, Reason: err.Error()}, err
}

// fail restores the stock taken for o and reports Failed. An order that did
// reach the store despite the error (a lost commit acknowledgement) is
// reported as Committed instead.
func (p *Processor) fail(ctx context.Context, span trace.Span, o domain.Order, cause error) (Result, error) {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("%w: %w", domain.ErrCheckoutTimeout, cause)
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, "persist")

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CompensationTimeout)
	defer cancel()

	if !errors.Is(cause, domain.ErrInvariantViolation) && !errors.Is(cause, domain.ErrDuplicateOrderNumber) {
		if saved, err := p.store.GetByNumber(dctx, o.Number); err == nil {
			p.log.Warn("order persisted despite error, keeping it", "order_number", o.Number, "err", cause)
			return p.committed(dctx, saved), nil
		}
	}

	if err := p.compensate(dctx, o); err != nil {
		p.log.Error("stock compensation failed", "order_number", o.Number, "cause", cause, "err", err)
		return Result{State: domain.StateFailed, Reason: cause.Error()}, errors.Join(cause, fmt.Errorf("%w: %w", domain.ErrCompensationFailed, err))
	}
	p.log.Error("checkout failed, stock restored", "order_number", o.Number, "err", cause)
	return Result{State: domain.StateFailed, Reason: cause.Error()}, cause
}

func (p *Processor) compensate(ctx context.Context, o domain.Order) error {
	var errs []error
	for _, it := range o.Items {
		adj := inventory.AdjustDelta(it.ProductID, it.Quantity, ReasonCompensation)
		adj.OrderNumber = o.Number
		if _, err := p.ledger.AdjustStock(ctx, adj); err != nil {
			errs = append(errs, fmt.Errorf("product %d: %w", it.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) Get(ctx context.Context, id int64) (domain.Order, error) {
	return p.store.Get(ctx, id)
}
