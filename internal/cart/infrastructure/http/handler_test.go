package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront/internal/cart/application"
	carthttp "github.com/dmehra2102/storefront/internal/cart/infrastructure/http"
	cartstore "github.com/dmehra2102/storefront/internal/cart/infrastructure/store"
	catalogapp "github.com/dmehra2102/storefront/internal/catalog/application"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	catalogstore "github.com/dmehra2102/storefront/internal/catalog/infrastructure/store"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	orderapp "github.com/dmehra2102/storefront/internal/order/application"
	orderstore "github.com/dmehra2102/storefront/internal/order/infrastructure/store"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

func asAlice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identityhttp.WithCaller(r.Context(), identity.Caller{ID: "alice"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func passthrough(next http.Handler) http.Handler { return next }

type cartResp struct {
	UserID      string `json:"user_id"`
	TotalAmount string `json:"total_amount"`
	Items       []struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
		Subtotal  string `json:"subtotal"`
	} `json:"items"`
}

func setup(t *testing.T) (http.Handler, string) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := docstore.NewMemory()
	cat := catalogapp.NewService(log, catalogstore.NewRepository(log, store))
	orders := orderapp.NewService(log, orderstore.NewRepository(log, store), cat)
	svc := application.NewService(log, cartstore.NewRepository(log, store), cat, orders)

	p, err := cat.Create(context.Background(), identity.Caller{ID: "admin", IsAdmin: true}, catalog.Draft{
		Name: "Notebook", Price: decimal.RequireFromString("4.25"), Category: "Office", Stock: 5,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/cart", carthttp.NewHandler(log, svc).Routes(asAlice, passthrough))
	return r, p.ID
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rr
}

func decodeCart(t *testing.T, rr *httptest.ResponseRecorder) cartResp {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var c cartResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	return c
}

func TestCartFlow(t *testing.T) {
	h, pid := setup(t)

	c := decodeCart(t, call(h, http.MethodGet, "/cart", ""))
	assert.Equal(t, "alice", c.UserID)
	assert.Empty(t, c.Items)

	decodeCart(t, call(h, http.MethodPost, "/cart/items", `{"product_id":"`+pid+`","quantity":2}`))
	c = decodeCart(t, call(h, http.MethodPost, "/cart/items", `{"product_id":"`+pid+`","quantity":1}`))
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(3), c.Items[0].Quantity)
	assert.Equal(t, "12.75", c.TotalAmount)

	rr := call(h, http.MethodPost, "/cart/items", `{"product_id":"`+pid+`","quantity":3}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	c = decodeCart(t, call(h, http.MethodPut, "/cart/items/"+pid, `{"quantity":1}`))
	assert.Equal(t, "4.25", c.TotalAmount)

	rr = call(h, http.MethodPut, "/cart/items/ghost", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	decodeCart(t, call(h, http.MethodDelete, "/cart/items/ghost", ""))

	rr = call(h, http.MethodPost, "/cart/checkout", `{"shipping_address":{"full_name":"Alice","address":"1 Main St","city":"Springfield","postal_code":"12345","country":"US"},"payment_method":"card"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var o struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "pending", o.Status)

	c = decodeCart(t, call(h, http.MethodGet, "/cart", ""))
	assert.Empty(t, c.Items)
	assert.Equal(t, "0", c.TotalAmount)
}

func TestCheckoutEmptyCart(t *testing.T) {
	h, _ := setup(t)
	rr := call(h, http.MethodPost, "/cart/checkout", `{"shipping_address":{"full_name":"A","address":"B","city":"C","postal_code":"D","country":"E"},"payment_method":"card"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "cart is empty")
}

func TestClearCart(t *testing.T) {
	h, pid := setup(t)
	decodeCart(t, call(h, http.MethodPost, "/cart/items", `{"product_id":"`+pid+`","quantity":1}`))

	rr := call(h, http.MethodDelete, "/cart/clear", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Cart cleared successfully"}`, rr.Body.String())

	c := decodeCart(t, call(h, http.MethodGet, "/cart", ""))
	assert.Empty(t, c.Items)
}
