package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cartapp "github.com/dmehra2102/pos-order-engine/internal/cart/application"
	cart "github.com/dmehra2102/pos-order-engine/internal/cart/domain"
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	"github.com/dmehra2102/pos-order-engine/internal/receipt"
	"github.com/dmehra2102/pos-order-engine/pkg/idempotency"
)

type Catalog interface {
	ListActiveProducts(ctx context.Context) ([]catalog.Listing, error)
	Refresh(ctx context.Context, ids ...catalog.ProductID)
}

type Stock interface {
	AdjustStock(ctx context.Context, adj inventory.Adjustment) (int, error)
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
	LowStockThreshold() int
}

type Carts interface {
	Create() string
	View(id string) (cartapp.View, error)
	Add(ctx context.Context, id string, productID catalog.ProductID, qty int) (cartapp.View, error)
	SetQuantity(id string, productID catalog.ProductID, qty int) (cartapp.View, error)
	Remove(id string, productID catalog.ProductID) (cartapp.View, error)
	Abandon(id string) error
}

type Till interface {
	CheckoutCart(ctx context.Context, cartID string, method domain.PaymentMethod, discount decimal.Decimal) (application.Result, error)
	Order(ctx context.Context, id int64) (domain.Order, error)
}

// Idempotency replays completed checkout responses for a repeated
// Idempotency-Key.
type Idempotency interface {
	Begin(ctx context.Context, key string) ([]byte, bool, error)
	Complete(ctx context.Context, key string, response []byte) error
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	catalog Catalog
	stock   Stock
	carts   Carts
	till    Till
	idem    Idempotency
	feed    http.Handler
	ready   func(context.Context) error
	tracer  trace.Tracer
}

type Option func(*Handler)

// WithIdempotency enables Idempotency-Key handling on checkout.
func WithIdempotency(idem Idempotency) Option { return func(h *Handler) { h.idem = idem } }

// WithCatalogFeed mounts the station websocket feed at /ws/catalog.
func WithCatalogFeed(feed http.Handler) Option { return func(h *Handler) { h.feed = feed } }

// WithReadiness makes /health report the result of check.
func WithReadiness(check func(context.Context) error) Option {
	return func(h *Handler) { h.ready = check }
}

func NewHandler(log *slog.Logger, cat Catalog, stock Stock, carts Carts, till Till, opts ...Option) *Handler {
	h := &Handler{
		log:     log,
		catalog: cat,
		stock:   stock,
		carts:   carts,
		till:    till,
		tracer:  otel.Tracer("pos-http"),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.health)

	r.Get("/products", h.listProducts)
	r.Get("/products/low-stock", h.lowStock)
	r.Post("/products/{productID}/stock", h.adjustStock)

	r.Post("/carts", h.createCart)
	r.Route("/carts/{cartID}", func(r chi.Router) {
		r.Get("/", h.viewCart)
		r.Delete("/", h.abandonCart)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.setQuantity)
		r.Delete("/items/{productID}", h.removeItem)
		r.Post("/checkout", h.checkout)
	})

	r.Get("/orders/{orderID}", h.getOrder)
	r.Get("/orders/{orderID}/receipt", h.getReceipt)

	if h.feed != nil {
		r.Handle("/ws/catalog", h.feed)
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListActiveProducts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.stock.ListLowStock(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]catalog.Listing, 0, len(products))
	for _, p := range products {
		out = append(out, catalog.NewListing(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"threshold": h.stock.LowStockThreshold(), "products": out})
}

type adjustReq struct {
	Mode     inventory.AdjustMode `json:"mode"`
	Quantity int                  `json:"quantity"`
	Reason   string               `json:"reason"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdjustStock")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req adjustReq
	if !decode(w, r, &req) {
		return
	}
	span.SetAttributes(attribute.Int64("product_id", int64(id)), attribute.String("mode", string(req.Mode)))

	qty, err := h.stock.AdjustStock(ctx, inventory.Adjustment{ProductID: id, Mode: req.Mode, Quantity: req.Quantity, Reason: req.Reason})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.catalog.Refresh(ctx, id)
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "stock_quantity": qty})
}

func (h *Handler) createCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"cart_id": h.carts.Create()})
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.View(chi.URLParam(r, "cartID"))
	h.respondCart(w, v, err)
}

func (h *Handler) abandonCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Abandon(chi.URLParam(r, "cartID")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemReq struct {
	ProductID catalog.ProductID `json:"product_id"`
	Quantity  int               `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !decode(w, r, &req) {
		return
	}
	v, err := h.carts.Add(r.Context(), chi.URLParam(r, "cartID"), req.ProductID, req.Quantity)
	h.respondCart(w, v, err)
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req setQuantityReq
	if !decode(w, r, &req) {
		return
	}
	v, err := h.carts.SetQuantity(chi.URLParam(r, "cartID"), id, req.Quantity)
	h.respondCart(w, v, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	v, err := h.carts.Remove(chi.URLParam(r, "cartID"), id)
	h.respondCart(w, v, err)
}

func (h *Handler) respondCart(w http.ResponseWriter, v cartapp.View, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type checkoutReq struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Discount      decimal.Decimal      `json:"discount"`
}

// replay is what an Idempotency-Key stores: the exact status and body of the
// first response.
type replay struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CheckoutCart")
	defer span.End()

	cartID := chi.URLParam(r, "cartID")
	var req checkoutReq
	if !decode(w, r, &req) {
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		key = idempotency.RequestKey("checkout:"+cartID, key)
		cached, fresh, err := h.idem.Begin(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			writeError(w, http.StatusConflict, err)
			return
		case err != nil:
			h.log.Error("idempotency lookup failed", "cart_id", cartID, "err", err)
			writeError(w, http.StatusServiceUnavailable, err)
			return
		case !fresh:
			var rep replay
			if err := json.Unmarshal(cached, &rep); err == nil {
				span.SetAttributes(attribute.Bool("replayed", true))
				writeRaw(w, rep.Status, rep.Body)
				return
			}
			h.log.Warn("discarding unreadable idempotent response", "cart_id", cartID)
		}
	} else {
		key = ""
	}

	res, err := h.till.CheckoutCart(ctx, cartID, req.PaymentMethod, req.Discount)
	code := checkoutStatus(res, err)
	span.SetAttributes(attribute.String("state", string(res.State)), attribute.Int("http.status_code", code))

	var body []byte
	if err != nil && res.State != domain.StateFailed {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	} else {
		body, err = json.Marshal(res)
		if err != nil {
			h.fail(w, err)
			return
		}
	}

	if key != "" {
		h.remember(ctx, key, code, body)
	}
	writeRaw(w, code, body)
}

// remember stores terminal answers for replay. Unavailable answers release the
// key so the client can retry.
func (h *Handler) remember(ctx context.Context, key string, code int, body []byte) {
	ctx = context.WithoutCancel(ctx)
	if code >= http.StatusInternalServerError {
		if err := h.idem.Release(ctx, key); err != nil {
			h.log.Warn("idempotency release failed", "err", err)
		}
		return
	}
	rep, _ := json.Marshal(replay{Status: code, Body: body})
	if err := h.idem.Complete(ctx, key, rep); err != nil {
		h.log.Warn("idempotency store failed", "err", err)
	}
}

func checkoutStatus(res application.Result, err error) int {
	switch {
	case err == nil && res.State == domain.StateCommitted:
		return http.StatusCreated
	case err == nil && res.State == domain.StateRejected:
		return http.StatusConflict
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrInvalidCheckout):
		return http.StatusBadRequest
	case res.State == domain.StateFailed:
		return http.StatusServiceUnavailable
	}
	return statusFor(err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.order(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	o, ok := h.order(w, r)
	if !ok {
		return
	}
	rc, err := receipt.Project(o)
	if err != nil {
		h.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(rc.Text))
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid order id"))
		return domain.Order{}, false
	}
	o, err := h.till.Order(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return domain.Order{}, false
	}
	return o, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	var capacity *cart.CapacityError
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.Is(err, cartapp.ErrSessionNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound
	case errors.As(err, &capacity),
		errors.As(err, &insufficient),
		errors.Is(err, cartapp.ErrCheckoutInProgress),
		errors.Is(err, cartapp.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCheckout),
		errors.Is(err, inventory.ErrInvalidAdjustment),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInactiveProduct):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func productID(w http.ResponseWriter, r *http.Request) (catalog.ProductID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid product id"))
		return 0, false
	}
	return catalog.ProductID(id), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeRaw(w, code, b)
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	writeRaw(w, code, b)
}
