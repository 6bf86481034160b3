package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	cartapp "github.com/dmehra2102/storefront/internal/cart/application"
	carthttp "github.com/dmehra2102/storefront/internal/cart/infrastructure/http"
	cartstore "github.com/dmehra2102/storefront/internal/cart/infrastructure/store"
	catalogapp "github.com/dmehra2102/storefront/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/storefront/internal/catalog/infrastructure/http"
	catalogstore "github.com/dmehra2102/storefront/internal/catalog/infrastructure/store"
	"github.com/dmehra2102/storefront/internal/config"
	identityapp "github.com/dmehra2102/storefront/internal/identity/application"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	"github.com/dmehra2102/storefront/internal/identity/infrastructure/security"
	identitystore "github.com/dmehra2102/storefront/internal/identity/infrastructure/store"
	orderapp "github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	orderhttp "github.com/dmehra2102/storefront/internal/order/infrastructure/http"
	orderstore "github.com/dmehra2102/storefront/internal/order/infrastructure/store"
	"github.com/dmehra2102/storefront/pkg/docstore"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

const requestTimeout = 30 * time.Second

// app holds the services built over one store.
type app struct {
	log      *slog.Logger
	store    docstore.Store
	idem     *idempotency.Store
	events   *outbox.DocStore
	identity *identityapp.Service
	catalog  *catalogapp.Service
	orders   *orderapp.Service
	carts    *cartapp.Service
}

// newApp wires every context over store. idem may be nil.
func newApp(cfg config.Config, log *slog.Logger, store docstore.Store, idem *idempotency.Store) *app {
	identity := identityapp.NewService(log,
		identitystore.NewRepository(log, store),
		security.NewBcryptHasher(0),
		security.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTokenExpiry))

	catalog := catalogapp.NewService(log, catalogstore.NewRepository(log, store))

	events := outbox.NewDocStore(log, store)
	opts := []orderapp.Option{
		orderapp.WithEvents(events),
		orderapp.WithShippingPolicy(domain.ShippingPolicy{FlatRate: cfg.ShippingFlatRate, FreeOver: cfg.ShippingFreeOver}),
	}
	if cfg.OrderRestockOnFailure {
		opts = append(opts, orderapp.WithRestockOnFailure())
	}
	orders := orderapp.NewService(log, orderstore.NewRepository(log, store), catalog, opts...)
	carts := cartapp.NewService(log, cartstore.NewRepository(log, store), catalog, orders)

	return &app{
		log:      log,
		store:    store,
		idem:     idem,
		events:   events,
		identity: identity,
		catalog:  catalog,
		orders:   orders,
		carts:    carts,
	}
}

func (a *app) routes() http.Handler {
	requireCaller := identityhttp.RequireCaller(a.log, a.identity)
	requireAdmin := identityhttp.RequireAdmin(a.log)
	idempotent := idempotency.Middleware(a.idem, a.log, identityhttp.CallerID)

	r := chi.NewRouter()
	r.Use(httpx.WithRequestID)
	r.Use(httpx.WithLogging(a.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/", a.banner)
	r.Get("/health", a.health)
	r.Mount("/auth", identityhttp.NewHandler(a.log, a.identity).Routes(requireCaller))
	r.Mount("/products", cataloghttp.NewHandler(a.log, a.catalog).Routes(requireCaller, requireAdmin))
	r.Mount("/cart", carthttp.NewHandler(a.log, a.carts).Routes(requireCaller, idempotent))
	r.Mount("/orders", orderhttp.NewHandler(a.log, a.orders).Routes(requireCaller, idempotent))
	return r
}

func (a *app) banner(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the storefront API",
		"version": "1.0.0",
	})
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health check failed", "err", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "disconnected"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "connected"})
}
