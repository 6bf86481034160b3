package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/storefront/internal/identity/application"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	"github.com/dmehra2102/storefront/internal/identity/infrastructure/security"
	"github.com/dmehra2102/storefront/internal/identity/infrastructure/store"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := application.NewService(log,
		store.NewRepository(log, docstore.NewMemory()),
		security.NewBcryptHasher(bcrypt.MinCost),
		security.NewJWTIssuer("0123456789abcdef", 30*time.Minute))
	r := chi.NewRouter()
	r.Mount("/auth", identityhttp.NewHandler(log, svc).Routes(identityhttp.RequireCaller(log, svc)))
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRegisterLoginMe(t *testing.T) {
	h := newRouter(t)
	reg := map[string]any{"email": "ana@example.com", "username": "ana", "password": "secret1", "full_name": "Ana Lima"}

	rr := do(t, h, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var user map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.NotEmpty(t, user["id"])
	assert.Equal(t, false, user["is_admin"])
	assert.NotContains(t, rr.Body.String(), "password")

	rr = do(t, h, http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotContains(t, rr.Body.String(), "access_token")

	rr = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)
	var tok struct {
		AccessToken string         `json:"access_token"`
		TokenType   string         `json:"token_type"`
		User        map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, user["id"], tok.User["id"])

	rr = do(t, h, http.MethodGet, "/auth/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"ana@example.com"`)
}

func TestMeRequiresBearerToken(t *testing.T) {
	h := newRouter(t)
	rr := do(t, h, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	rr = do(t, h, http.MethodGet, "/auth/me", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
