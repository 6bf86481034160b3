package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmehra2102/storefront/internal/identity/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/httpx"
)

type ctxKey int

const ctxKeyCaller ctxKey = iota

var ErrAdminOnly = apperr.New(apperr.Forbidden, "not enough permissions")

// Authenticator turns a bearer token into a domain.Caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Caller, error)
}

func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(domain.Caller)
	return c, ok
}

// CallerID is the idempotency scope for authenticated routes.
func CallerID(r *http.Request) string {
	c, _ := CallerFromContext(r.Context())
	return c.ID
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func RequireCaller(log *slog.Logger, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, r, log, domain.ErrUnauthenticated)
				return
			}
			caller, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				httpx.WriteError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAdmin must run after RequireCaller.
func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := CallerFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, log, domain.ErrUnauthenticated)
				return
			}
			if !c.IsAdmin {
				httpx.WriteError(w, r, log, ErrAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
