package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

// orderItemReq accepts the full item shape clients send. Only product_id and
// quantity are used; name, price and image come from the catalog.
type orderItemReq struct {
	ProductID string           `json:"product_id"`
	Name      string           `json:"name"`
	Quantity  int64            `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	Image     *string          `json:"image"`
}

type createOrderReq struct {
	OrderItems      []orderItemReq         `json:"order_items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	ItemsPrice      *decimal.Decimal       `json:"items_price"`
	ShippingPrice   *decimal.Decimal       `json:"shipping_price"`
	TotalPrice      *decimal.Decimal       `json:"total_price"`
}

func (req createOrderReq) placeOrder() application.PlaceOrder {
	items := make([]application.LineItem, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		items = append(items, application.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	po := application.PlaceOrder{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	if req.TotalPrice != nil {
		po.Claimed = &application.Totals{
			ItemsPrice:    orZero(req.ItemsPrice),
			ShippingPrice: orZero(req.ShippingPrice),
			TotalPrice:    *req.TotalPrice,
		}
	}
	return po
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Routes mounts under /orders. idempotent wraps order creation.
func (h *Handler) Routes(requireCaller, idempotent func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requireCaller)
	r.With(idempotent).Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Put("/{id}/status", h.updateStatus)
	r.Put("/{id}/payment", h.updatePayment)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(ctx)
	span.SetAttributes(attribute.Int("order.items", len(req.OrderItems)))

	o, err := h.service.CreateOrder(ctx, caller, req.placeOrder())
	if err != nil {
		if re, ok := domain.AsRejected(err); ok {
			span.SetAttributes(attribute.String("order.rejected", string(re.Reason)))
		}
		span.SetStatus(codes.Error, err.Error())
		httpx.WriteError(w, r, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	orders, err := h.service.ListOrders(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	o, err := h.service.GetOrder(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	status := r.URL.Query().Get("new_status")
	if status == "" {
		httpx.WriteError(w, r, h.log, fmt.Errorf("%w: new_status is required", domain.ErrValidation))
		return
	}
	caller, _ := identityhttp.CallerFromContext(ctx)
	if _, err := h.service.UpdateOrderStatus(ctx, caller, chi.URLParam(r, "id"), status); err != nil {
		span.SetStatus(codes.Error, err.Error())
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Order status updated successfully"})
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	isPaid, err := strconv.ParseBool(r.URL.Query().Get("is_paid"))
	if err != nil {
		httpx.WriteError(w, r, h.log, fmt.Errorf("%w: is_paid must be a boolean", domain.ErrValidation))
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	if _, err := h.service.UpdatePaymentStatus(r.Context(), caller, chi.URLParam(r, "id"), isPaid); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Payment status updated successfully"})
}
