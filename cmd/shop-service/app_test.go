package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront/internal/config"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

func testConfig() config.Config {
	cfg := config.Load()
	cfg.JWTSecret = "test-secret-0123456789"
	cfg.ShippingFlatRate = decimal.NewFromInt(10)
	cfg.ShippingFreeOver = decimal.NewFromInt(100)
	return cfg
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	return rr
}

func (c *client) login(email, password string) {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.Equal(c.t, "bearer", tok.TokenType)
	c.token = tok.AccessToken
}

func TestShopEndToEnd(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a := newApp(testConfig(), log, docstore.NewMemory(), nil)
	require.NoError(t, a.identity.EnsureAdmin(context.Background(), "admin@shop.test", "admin-pass"))
	h := a.routes()

	admin := &client{t: t, h: h}
	admin.login("admin@shop.test", "admin-pass")
	rr := admin.do(http.MethodPost, "/products/seed", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	shopper := &client{t: t, h: h}
	rr = shopper.do(http.MethodPost, "/auth/register", map[string]string{
		"email": "Shopper@Shop.test", "username": "shopper", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, http.StatusUnauthorized, shopper.do(http.MethodGet, "/cart", nil).Code)
	shopper.login("shopper@shop.test", "secret1")

	assert.Equal(t, http.StatusForbidden, shopper.do(http.MethodPost, "/products/seed", nil).Code)

	rr = shopper.do(http.MethodGet, "/products?category=Books&limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var books []struct {
		ID    string `json:"id"`
		Price string `json:"price"`
		Stock int64  `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &books))
	require.Len(t, books, 1)
	book := books[0]

	rr = shopper.do(http.MethodPost, "/cart/items", map[string]any{"product_id": book.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = shopper.do(http.MethodPost, "/cart/checkout", map[string]any{
		"shipping_address": map[string]string{
			"full_name": "Sam Shopper", "address": "2 Side St", "city": "Shelbyville", "postal_code": "54321", "country": "US",
		},
		"payment_method": "paypal",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var placed struct {
		ID         string `json:"id"`
		ItemsPrice string `json:"items_price"`
		TotalPrice string `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &placed))
	price := decimal.RequireFromString(book.Price)
	items := price.Mul(decimal.NewFromInt(2))
	assert.Equal(t, items.String(), placed.ItemsPrice)

	rr = shopper.do(http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var mine []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, placed.ID, mine[0].ID)

	rr = shopper.do(http.MethodGet, "/products/"+book.ID, nil)
	var after struct {
		Stock int64 `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &after))
	assert.Equal(t, book.Stock-2, after.Stock)

	assert.Equal(t, http.StatusOK, admin.do(http.MethodPut, "/orders/"+placed.ID+"/status?new_status=processing", nil).Code)

	pending, err := a.events.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending, "order created and status changed")
}

type downStore struct{ docstore.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthAndBanner(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := newApp(testConfig(), log, docstore.NewMemory(), nil).routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"connected"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newApp(testConfig(), log, downStore{docstore.NewMemory()}, nil).routes()
	rr = httptest.NewRecorder()
	down.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
