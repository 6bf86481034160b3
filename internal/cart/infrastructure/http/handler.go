package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront/internal/cart/application"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	order "github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service, tracer: otel.Tracer("cart-http")}
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type updateItemReq struct {
	Quantity int64 `json:"quantity"`
}

type checkoutReq struct {
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
}

// Routes mounts under /cart. Every route needs a caller; idempotent wraps
// checkout.
func (h *Handler) Routes(requireCaller, idempotent func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requireCaller)
	r.Get("/", h.get)
	r.Post("/items", h.addItem)
	r.Put("/items/{product_id}", h.updateItem)
	r.Delete("/items/{product_id}", h.removeItem)
	r.Delete("/clear", h.clear)
	r.With(idempotent).Post("/checkout", h.checkout)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	c, err := h.service.Get(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	c, err := h.service.AddItem(r.Context(), caller, req.ProductID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	c, err := h.service.UpdateQuantity(r.Context(), caller, chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	c, err := h.service.RemoveItem(r.Context(), caller, chi.URLParam(r, "product_id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	if _, err := h.service.Clear(r.Context(), caller); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared successfully"})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	var req checkoutReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(ctx)
	o, err := h.service.Checkout(ctx, caller, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		httpx.WriteError(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	httpx.WriteJSON(w, http.StatusOK, o)
}
