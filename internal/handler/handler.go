// Package handler exposes the storefront HTTP API. Responses follow the
// envelope convention: {"success": true, ...} on success and
// {"message": "..."} on failure.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/oakmart/storefront/internal/domain/auth"
	"github.com/oakmart/storefront/internal/domain/category"
	"github.com/oakmart/storefront/internal/domain/coupon"
	"github.com/oakmart/storefront/internal/domain/order"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/report"
	"github.com/oakmart/storefront/internal/domain/user"
	"github.com/oakmart/storefront/internal/notify"
	"github.com/oakmart/storefront/pkg/health"
)

// Handler holds every dependency the HTTP API needs.
type Handler struct {
	users      user.Repository
	tokens     *auth.TokenIssuer
	products   product.Repository
	categories category.Repository
	coupons    coupon.Repository
	validator  *coupon.Validator
	orders     *order.Service
	reports    *report.Service
	sink       notify.Sink
}

// New creates a Handler.
func New(
	users user.Repository,
	tokens *auth.TokenIssuer,
	products product.Repository,
	categories category.Repository,
	coupons coupon.Repository,
	validator *coupon.Validator,
	orders *order.Service,
	reports *report.Service,
	sink notify.Sink,
) *Handler {
	return &Handler{
		users:      users,
		tokens:     tokens,
		products:   products,
		categories: categories,
		coupons:    coupons,
		validator:  validator,
		orders:     orders,
		reports:    reports,
		sink:       sink,
	}
}

// Router builds the API route tree. Health endpoints live outside /api so
// probes bypass auth and rate limits configured upstream.
func (h *Handler) Router(healthSvc *health.Health) chi.Router {
	r := chi.NewRouter()

	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.With(h.Protect).Get("/profile", h.profile)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Get("/{id}", h.getProduct)
			r.With(h.Protect, h.AdminOnly).Post("/", h.createProduct)
			r.With(h.Protect, h.AdminOnly).Put("/{id}/stock", h.updateStock)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.With(h.Protect, h.AdminOnly).Post("/", h.createCategory)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.With(h.Protect).Post("/validate", h.validateCoupon)
			r.With(h.Protect, h.AdminOnly).Post("/", h.createCoupon)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.Protect)
			r.Post("/", h.placeOrder)
			r.Get("/my-orders", h.myOrders)
			r.With(h.AdminOnly).Get("/all", h.allOrders)
		})

		r.With(h.Protect, h.AdminOnly).Get("/reports/sales", h.salesReport)
	})

	return r
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"message": message})
}

// serverError logs the cause and responds with the generic 500 envelope.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "Server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
