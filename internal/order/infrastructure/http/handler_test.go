package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/dmehra2102/pos-order-engine/internal/cart/application"
	catalogapp "github.com/dmehra2102/pos-order-engine/internal/catalog/application"
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	invapp "github.com/dmehra2102/pos-order-engine/internal/inventory/application"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	invmemory "github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/pos-order-engine/internal/order/application"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	ordermemory "github.com/dmehra2102/pos-order-engine/internal/order/infrastructure/memory"
	"github.com/dmehra2102/pos-order-engine/pkg/idempotency"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
	"github.com/dmehra2102/pos-order-engine/pkg/retry"
)

// memIdem mirrors the Redis store's claim/complete/release semantics.
type memIdem struct {
	mu   sync.Mutex
	vals map[string][]byte
}

func (m *memIdem) Begin(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		m.vals[key] = nil
		return nil, true, nil
	}
	if v == nil {
		return nil, false, idempotency.ErrInFlight
	}
	return v, false, nil
}

func (m *memIdem) Complete(_ context.Context, key string, response []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = response
	return nil
}

func (m *memIdem) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

type fixture struct {
	srv    *httptest.Server
	ledger *invmemory.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Discard()
	ledger := invmemory.NewLedger(
		catalog.Product{ID: 1, Name: "Chicken Burger", Price: decimal.RequireFromString("10.00"), StockQuantity: 5, IsActive: true},
		catalog.Product{ID: 2, Name: "Iced Tea", Price: decimal.RequireFromString("2.50"), StockQuantity: 3, IsActive: true},
		catalog.Product{ID: 3, Name: "Fries", Price: decimal.RequireFromString("3.00"), StockQuantity: 40, IsActive: true},
	)
	stock := invapp.NewService(log, ledger, retry.DefaultPolicy(3), 3)
	cat := catalogapp.NewService(log, ledger, nil, nil)
	sessions := cartapp.NewSessions(log, ledger, decimal.RequireFromString("0.08"))
	proc := application.NewProcessor(log, stock, ordermemory.NewStore(), domain.TimestampNumbers{}, cat, application.DefaultConfig())

	h := NewHandler(log, cat, stock, sessions, application.NewTill(sessions, ledger, decimal.RequireFromString("0.08"), proc),
		WithIdempotency(&memIdem{vals: map[string][]byte{}}))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, ledger: ledger}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (f *fixture) stock(t *testing.T, id catalog.ProductID) int {
	t.Helper()
	qty, err := f.ledger.Available(context.Background(), id)
	require.NoError(t, err)
	return qty
}

func (f *fixture) cartWith(t *testing.T, items ...addItemReq) string {
	t.Helper()
	code, body := f.do(t, http.MethodPost, "/carts", nil)
	require.Equal(t, http.StatusCreated, code)
	id := body["cart_id"].(string)
	for _, it := range items {
		code, body = f.do(t, http.MethodPost, "/carts/"+id+"/items", it)
		require.Equal(t, http.StatusOK, code, body)
	}
	return id
}

func TestHealthAndProducts(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = f.do(t, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["products"], 3)

	code, body = f.do(t, http.MethodGet, "/products/low-stock", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["threshold"])
	assert.Len(t, body["products"], 1)
}

func TestCheckoutCommitsAndServesReceipt(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 1, Quantity: 2})

	code, body := f.do(t, http.MethodGet, "/carts/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	totals := body["totals"].(map[string]any)
	assert.Equal(t, "21.6", totals["total"])

	code, body = f.do(t, http.MethodPost, "/carts/"+id+"/checkout", checkoutReq{PaymentMethod: domain.PaymentCash})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "committed", body["state"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "20", order["subtotal"])
	assert.Equal(t, "1.6", order["tax_amount"])
	assert.Equal(t, 3, f.stock(t, 1))

	orderID := int64(order["order_id"].(float64))
	path := "/orders/" + strconv.FormatInt(orderID, 10)
	code, body = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, order["order_number"], body["order_number"])

	resp, err := http.Get(f.srv.URL + path + "/receipt?format=text")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "RECEIPT")
	assert.Contains(t, string(text), order["order_number"].(string))

	code, body = f.do(t, http.MethodGet, "/carts/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["lines"])
}

func TestCheckoutRejectedIsConflict(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 2, Quantity: 3})
	_, err := f.ledger.AdjustStock(context.Background(), invAdjust(2, -1))
	require.NoError(t, err)

	code, body := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", checkoutReq{PaymentMethod: domain.PaymentCard})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "rejected", body["state"])
	short := body["insufficient_products"].([]any)
	require.Len(t, short, 1)
	assert.EqualValues(t, 2, short[0].(map[string]any)["available"])
	assert.Equal(t, 2, f.stock(t, 2))
}

func TestCheckoutIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 3, Quantity: 4})
	req := checkoutReq{PaymentMethod: domain.PaymentCash}

	code1, body1 := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", req, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, code1)
	code2, body2 := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", req, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, code2)

	assert.Equal(t, body1["order"], body2["order"])
	assert.Equal(t, 36, f.stock(t, 3))

	// Without the key the now-empty cart cannot be checked out again.
	code, _ := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", req)
	assert.Equal(t, http.StatusConflict, code)
}

func TestCheckoutInvalidInput(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 1, Quantity: 1})

	code, _ := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", checkoutReq{PaymentMethod: "voucher"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPost, "/carts/"+id+"/checkout", checkoutReq{PaymentMethod: domain.PaymentCash, Discount: decimal.NewFromInt(-1)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 5, f.stock(t, 1))

	resp, err := http.Post(f.srv.URL+"/carts/"+id+"/checkout", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutOfDelistedProductIsBadRequest(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 1, Quantity: 1}, addItemReq{ProductID: 3, Quantity: 2})
	f.ledger.Put(catalog.Product{ID: 1, Name: "Chicken Burger", Price: decimal.RequireFromString("10.00"), StockQuantity: 5, IsActive: false})

	code, body := f.do(t, http.MethodPost, "/carts/"+id+"/checkout", checkoutReq{PaymentMethod: domain.PaymentCash})
	assert.Equal(t, http.StatusBadRequest, code, body)
	assert.Equal(t, string(domain.StateFailed), body["state"])
	assert.Equal(t, 40, f.stock(t, 3))
}

func TestCartEdits(t *testing.T) {
	f := newFixture(t)
	id := f.cartWith(t, addItemReq{ProductID: 1, Quantity: 1}, addItemReq{ProductID: 3, Quantity: 2})

	code, _ := f.do(t, http.MethodPost, "/carts/"+id+"/items", addItemReq{ProductID: 1, Quantity: 9})
	assert.Equal(t, http.StatusConflict, code, "beyond last seen stock")

	code, body := f.do(t, http.MethodPut, "/carts/"+id+"/items/1", setQuantityReq{Quantity: 4})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["lines"], 2)

	code, body = f.do(t, http.MethodDelete, "/carts/"+id+"/items/3", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["lines"], 1)

	code, _ = f.do(t, http.MethodDelete, "/carts/"+id+"/items/3", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/carts/"+id+"/items", addItemReq{ProductID: 99, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodDelete, "/carts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = f.do(t, http.MethodGet, "/carts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/products/2/stock", adjustReq{Mode: "add", Quantity: 10, Reason: "delivery"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 13, body["stock_quantity"])

	code, _ = f.do(t, http.MethodPost, "/products/2/stock", adjustReq{Mode: "remove", Quantity: 50, Reason: "waste"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/products/2/stock", adjustReq{Mode: "set", Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPost, "/products/abc/stock", adjustReq{Mode: "add", Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 13, f.stock(t, 2))
}

func invAdjust(id catalog.ProductID, delta int) inventory.Adjustment {
	return inventory.AdjustDelta(id, delta, "test")
}
