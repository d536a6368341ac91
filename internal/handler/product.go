package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/notify"
)

type productView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    categoryRef     `json:"category"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type categoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func viewProduct(p product.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    categoryRef{ID: p.CategoryID, Name: p.CategoryName},
		CreatedAt:   p.CreatedAt,
	}
}

func viewProducts(products []product.Product) []productView {
	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = viewProduct(p)
	}
	return views
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	products, total, err := h.products.List(r.Context(), product.ListFilter{
		Page:       page,
		Limit:      limit,
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	})
	if err != nil {
		serverError(w, r, err)
		return
	}

	totalPages := (total + limit - 1) / limit
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":  true,
		"products": viewProducts(products),
		"pagination": map[string]int{
			"currentPage":   page,
			"totalPages":    totalPages,
			"totalProducts": total,
		},
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Product not found")
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"product": viewProduct(*p),
	})
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  string          `json:"category"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.CategoryID == "" {
		writeError(w, r, http.StatusBadRequest, "Name and category are required")
		return
	}
	if req.Price.IsNegative() || req.Stock < 0 {
		writeError(w, r, http.StatusBadRequest, "Price and stock must not be negative")
		return
	}

	p := product.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		Active:      true,
		CategoryID:  req.CategoryID,
	}
	if err := h.products.Create(r.Context(), &p); err != nil {
		serverError(w, r, err)
		return
	}

	// Re-read to pick up the joined category name.
	created, err := h.products.GetByID(r.Context(), p.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"success": true,
		"product": viewProduct(*created),
	})
}

type updateStockRequest struct {
	Stock int `json:"stock"`
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Stock < 0 {
		writeError(w, r, http.StatusBadRequest, "Stock must not be negative")
		return
	}

	p, err := h.products.SetStock(r.Context(), chi.URLParam(r, "id"), req.Stock)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Product not found")
			return
		}
		serverError(w, r, err)
		return
	}

	h.sink.Publish(r.Context(), notify.EventStockUpdated, notify.StockUpdated{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
	})

	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"product": viewProduct(*p),
	})
}
