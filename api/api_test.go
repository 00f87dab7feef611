package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	"github.com/xraph/till/id"
	"github.com/xraph/till/seed"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// failingStore fails every transaction with err.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) Begin(context.Context, store.LockSet) (store.Tx, error) {
	return nil, f.err
}

func newApp(t *testing.T, st store.Store) *fiber.App {
	t.Helper()
	ctx := context.Background()
	tl := till.New(st, till.WithLogger(quiet))
	require.NoError(t, tl.Start(ctx))
	t.Cleanup(func() { _ = tl.Stop() })
	return api.New(tl, api.WithLogger(quiet)).App()
}

func seededApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	tl := till.New(memory.New(), till.WithLogger(quiet))
	require.NoError(t, tl.Start(ctx))
	t.Cleanup(func() { _ = tl.Stop() })
	require.NoError(t, seed.Load(ctx, tl, quiet))
	return api.New(tl, api.WithLogger(quiet)).App()
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp, out
}

func TestGenerateBill(t *testing.T) {
	app := seededApp(t)

	resp, out := do(t, app, http.MethodPost, "/api/generate-bill", `{
		"customer_email": "buyer@example.com",
		"amount_paid": 100,
		"products": [{"product_id": "P001", "quantity": 2}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.NotEmpty(t, resp.Header.Get(api.HeaderRequestID))

	assert.Equal(t, true, out["success"])
	assert.Equal(t, 91.0, out["total_amount"])
	assert.Equal(t, 4.55, out["tax_amount"])
	assert.Equal(t, 96.0, out["grand_total"])
	assert.Equal(t, 4.0, out["change_amount"])

	items := out["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Sugar", item["name"])
	assert.Equal(t, 45.5, item["unit_price"])
	assert.Equal(t, 5.0, item["tax_percentage"])
	assert.Equal(t, 4.55, item["tax_amount"])

	change := out["change_breakdown"].([]any)
	require.Len(t, change, 1)
	assert.Equal(t, map[string]any{"value": 2.0, "count": 2.0, "total": 4.0}, change[0])

	// A scalar payment is not added to the drawer.
	drawerStatus := out["shop_drawer_status"].(map[string]any)
	assert.Equal(t, 58796.0, drawerStatus["total_value"])
	assert.Equal(t, 98.0, out["available_denominations"].(map[string]any)["2"])

	summary := out["transaction_summary"].(map[string]any)
	assert.Equal(t, "committed", summary["stage"])
	assert.Equal(t, 2.0, summary["total_quantity"])
	assert.Equal(t, 2.0, summary["change_pieces"])
}

func TestGenerateBillWithTenderedNotes(t *testing.T) {
	app := seededApp(t)

	resp, out := do(t, app, http.MethodPost, "/api/generate-bill", `{
		"customer_email": "buyer@example.com",
		"products": [{"product_id": "P001", "quantity": 2}],
		"customer_payment_denominations": {"50": 2}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, 100.0, out["total_customer_payment"])
	assert.Equal(t, 102.0, out["available_denominations"].(map[string]any)["50"])
}

func TestGenerateBillErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		errSub string
	}{
		{
			name:   "invalid json",
			body:   `{"customer_email":`,
			status: http.StatusBadRequest,
			errSub: "invalid json",
		},
		{
			name:   "missing email",
			body:   `{"amount_paid": 100, "products": [{"product_id": "P001", "quantity": 1}]}`,
			status: http.StatusBadRequest,
			errSub: "email",
		},
		{
			name:   "bad amount",
			body:   `{"customer_email": "a@example.com", "amount_paid": "ten", "products": [{"product_id": "P001", "quantity": 1}]}`,
			status: http.StatusBadRequest,
			errSub: "amount_paid",
		},
		{
			name:   "unknown product",
			body:   `{"customer_email": "a@example.com", "amount_paid": 100, "products": [{"product_id": "P999", "quantity": 1}]}`,
			status: http.StatusBadRequest,
			errSub: "P999",
		},
		{
			name:   "insufficient stock",
			body:   `{"customer_email": "a@example.com", "amount_paid": 100000, "products": [{"product_id": "P004", "quantity": 81}]}`,
			status: http.StatusConflict,
			errSub: "available 80",
		},
		{
			name:   "insufficient payment",
			body:   `{"customer_email": "a@example.com", "amount_paid": "50.00", "products": [{"product_id": "P001", "quantity": 2}]}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown tendered denomination",
			body:   `{"customer_email": "a@example.com", "products": [{"product_id": "P001", "quantity": 1}], "customer_payment_denominations": {"100": 1}}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "amount beyond range",
			body:   `{"customer_email": "a@example.com", "amount_paid": "184467440737096016.16", "products": [{"product_id": "P001", "quantity": 1}]}`,
			status: http.StatusBadRequest,
			errSub: "amount_paid",
		},
		{
			name:   "tendered count that wraps",
			body:   `{"customer_email": "a@example.com", "products": [{"product_id": "P001", "quantity": 1}], "customer_payment_denominations": {"500": 1152921504606846977}}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "same tendered denomination twice",
			body:   `{"customer_email": "a@example.com", "products": [{"product_id": "P001", "quantity": 1}], "customer_payment_denominations": {"50": 1, "50.00": 1}}`,
			status: http.StatusBadRequest,
			errSub: "same denomination",
		},
		{
			name:   "same override denomination twice",
			body:   `{"customer_email": "a@example.com", "amount_paid": 100, "products": [{"product_id": "P001", "quantity": 1}], "denominations": {"50": 1, "50.00": 7}}`,
			status: http.StatusBadRequest,
			errSub: "denominations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := seededApp(t)
			resp, out := do(t, app, http.MethodPost, "/api/generate-bill", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, out)
			assert.Equal(t, false, out["success"])
			if tt.errSub != "" {
				assert.Contains(t, out["error"], tt.errSub)
			}
		})
	}
}

func TestBusyAndInternalErrors(t *testing.T) {
	body := `{"customer_email": "a@example.com", "amount_paid": 100, "products": [{"product_id": "P001", "quantity": 1}]}`

	busy := newApp(t, &failingStore{Store: memory.New(), err: till.ErrBusy})
	resp, out := do(t, busy, http.MethodPost, "/api/generate-bill", body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, false, out["success"])

	broken := newApp(t, &failingStore{Store: memory.New(), err: errors.New("disk on fire")})
	resp, out = do(t, broken, http.MethodPost, "/api/generate-bill", body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", out["error"])
}

func TestRequestIDEchoed(t *testing.T) {
	app := seededApp(t)
	resp, _ := do(t, app, http.MethodGet, "/healthz", "", api.HeaderRequestID, "req-42")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get(api.HeaderRequestID))
}

func TestProductLookup(t *testing.T) {
	app := seededApp(t)

	resp, out := do(t, app, http.MethodGet, "/api/product/P004", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"success": true, "product_id": "P004", "name": "Tea Powder", "price": 150.0, "tax": 18.0, "stock": 80.0,
	}, out)

	resp, out = do(t, app, http.MethodGet, "/api/product/P404", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Product not found", out["error"])

	resp, out = do(t, app, http.MethodGet, "/api/products?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := out["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "P002", products[0].(map[string]any)["product_id"])
}

func TestPurchaseHistory(t *testing.T) {
	app := seededApp(t)

	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "A@example.com"} {
		_, out := do(t, app, http.MethodPost, "/api/generate-bill", `{
			"customer_email": "`+email+`", "amount_paid": 30,
			"products": [{"product_id": "P003", "quantity": 1}]
		}`)
		require.Equal(t, true, out["success"], out)
		ids = append(ids, out["purchase_id"].(string))
	}

	resp, out := do(t, app, http.MethodGet, "/api/purchases?email=a@example.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := out["purchases"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].(map[string]any)["purchase_id"])
	assert.Equal(t, ids[0], history[1].(map[string]any)["purchase_id"])

	resp, out = do(t, app, http.MethodGet, "/api/purchases/"+ids[1], "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := out["purchase"].(map[string]any)
	assert.Equal(t, "b@example.com", detail["customer_email"])
	assert.Equal(t, 28.0, detail["grand_total"])

	resp, _ = do(t, app, http.MethodGet, "/api/purchases/"+id.NewPurchaseID().String(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/purchases/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDrawerRoutes(t *testing.T) {
	app := seededApp(t)

	resp, out := do(t, app, http.MethodPost, "/api/drawer", `{"denominations": {"500": 3, "1": 10}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	resp, out = do(t, app, http.MethodGet, "/api/drawer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := out["drawer"].(map[string]any)
	counts := d["denominations"].(map[string]any)
	assert.Equal(t, 3.0, counts["500"])
	assert.Equal(t, 100.0, counts["50"])
	assert.Equal(t, 10.0, counts["1"])
	assert.Equal(t, 10210.0, d["total_value"])

	resp, out = do(t, app, http.MethodPost, "/api/drawer", `{"denominations": {"0.50": 10}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["error"], "whole currency unit")

	resp, out = do(t, app, http.MethodPost, "/api/drawer", `{"denominations": {"500": -1}}`)
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["success"])

	resp, out = do(t, app, http.MethodPost, "/api/drawer", `{"denominations": {"20": 1, "20.00": 4}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "same denomination")

	resp, _ = do(t, app, http.MethodPost, "/api/drawer", `{"denominations": {}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
