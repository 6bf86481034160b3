package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront/internal/catalog/application"
	"github.com/dmehra2102/storefront/internal/catalog/domain"
	identityhttp "github.com/dmehra2102/storefront/internal/identity/infrastructure/http"
	"github.com/dmehra2102/storefront/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service, tracer: otel.Tracer("catalog-http")}
}

type restockReq struct {
	Quantity int64 `json:"quantity"`
}

type categoriesResp struct {
	Categories []string `json:"categories"`
	Count      int      `json:"count"`
}

type seedResp struct {
	Message     string   `json:"message"`
	InsertedIDs []string `json:"inserted_ids"`
	Categories  []string `json:"categories"`
}

// Routes mounts under /products. Reads are public; writes need an admin.
func (h *Handler) Routes(requireCaller, requireAdmin func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/categories", h.categories)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(requireCaller, requireAdmin)
		r.Post("/", h.create)
		r.Post("/seed", h.seed)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/restock", h.restock)
	})
	return r
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, key)
	}
	return n, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit", application.DefaultLimit)
	if err == nil && limit < 1 {
		err = fmt.Errorf("%w: limit must be at least 1", domain.ErrValidation)
	}
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	q := application.Query{
		Skip:     skip,
		Limit:    limit,
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	span.SetAttributes(attribute.String("category", q.Category), attribute.Bool("search", q.Search != ""))

	products, err := h.service.List(ctx, q)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, categoriesResp{Categories: cats, Count: len(cats)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var d domain.Draft
	if err := httpx.DecodeJSON(r, &d); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	p, err := h.service.Create(r.Context(), caller, d)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch domain.Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	p, err := h.service.Update(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	if err := h.service.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "product deleted successfully"})
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	caller, _ := identityhttp.CallerFromContext(r.Context())
	p, err := h.service.Restock(r.Context(), caller, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) seed(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityhttp.CallerFromContext(r.Context())
	res, err := h.service.Seed(r.Context(), caller, application.DemoProducts())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, seedResp{
		Message:     fmt.Sprintf("Successfully seeded %d products", len(res.Inserted)),
		InsertedIDs: res.Inserted,
		Categories:  res.Categories,
	})
}
