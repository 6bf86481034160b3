package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/dmehra2102/storefront/internal/catalog/application"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	catalogstore "github.com/dmehra2102/storefront/internal/catalog/infrastructure/store"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	"github.com/dmehra2102/storefront/internal/order/application"
	orderhttp "github.com/dmehra2102/storefront/internal/order/infrastructure/http"
	orderstore "github.com/dmehra2102/storefront/internal/order/infrastructure/store"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

const userHeader = "X-Test-User"

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(userHeader)
		c := identity.Caller{ID: id, IsAdmin: id == "admin"}
		next.ServeHTTP(w, r.WithContext(identityhttp.WithCaller(r.Context(), c)))
	})
}

func passthrough(next http.Handler) http.Handler { return next }

type fixture struct {
	router  http.Handler
	catalog *catalogapp.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := docstore.NewMemory()
	cat := catalogapp.NewService(log, catalogstore.NewRepository(log, store))
	svc := application.NewService(log, orderstore.NewRepository(log, store), cat)

	r := chi.NewRouter()
	r.Mount("/orders", orderhttp.NewHandler(log, svc).Routes(fakeAuth, passthrough))
	return fixture{router: r, catalog: cat}
}

func (f fixture) product(t *testing.T, stock int64) string {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), identity.Caller{ID: "admin", IsAdmin: true}, catalog.Draft{
		Name: "Kettle", Price: decimal.RequireFromString("25.50"), Category: "Home", Stock: stock,
	})
	require.NoError(t, err)
	return p.ID
}

func (f fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(userHeader, user)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func orderBody(productID string, qty int) string {
	return fmt.Sprintf(`{
		"order_items": [{"product_id": %q, "name": "Kettle", "quantity": %d, "price": 25.5, "image": null}],
		"shipping_address": {"full_name": "Alice", "address": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US"},
		"payment_method": "card",
		"items_price": 51, "shipping_price": 10, "total_price": 61
	}`, productID, qty)
}

func TestCreateAndFetchOrder(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 3)

	rr := f.do(http.MethodPost, "/orders", "alice", orderBody(pid, 2))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var created struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		TotalPrice string `json:"total_price"`
		UserID     string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "51", created.TotalPrice)
	assert.Equal(t, "alice", created.UserID)

	rr = f.do(http.MethodGet, "/orders/"+created.ID, "alice", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(http.MethodGet, "/orders/"+created.ID, "mallory", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, "/orders", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rr = f.do(http.MethodGet, "/orders", "mallory", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1)

	rr := f.do(http.MethodPost, "/orders", "alice", orderBody(pid, 2))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "insufficient stock")

	rr = f.do(http.MethodPost, "/orders", "alice", orderBody("nope", 1))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodPost, "/orders", "alice", `{"order_items": [], "surprise": 1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusAndPaymentEndpoints(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 5)
	rr := f.do(http.MethodPost, "/orders", "alice", orderBody(pid, 1))
	require.Equal(t, http.StatusOK, rr.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	base := "/orders/" + created.ID

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, base+"/status?new_status=processing", "alice", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, base+"/status", "admin", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, base+"/status?new_status=shipped", "admin", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, base+"/status?new_status=processing", "admin", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/orders/missing/status?new_status=processing", "admin", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, base+"/payment?is_paid=maybe", "admin", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, base+"/payment?is_paid=true", "alice", "").Code)
	rr = f.do(http.MethodPut, base+"/payment?is_paid=true", "admin", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, base, "alice", "")
	var got struct {
		Status string `json:"status"`
		IsPaid bool   `json:"is_paid"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "processing", got.Status)
	assert.True(t, got.IsPaid)
}
