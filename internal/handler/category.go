package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/oakmart/storefront/internal/domain/category"
)

type categoryView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}

	views := make([]categoryView, len(categories))
	for i, c := range categories {
		views[i] = categoryView{ID: c.ID, Name: c.Name, Description: c.Description}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"categories": views,
	})
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "Name is required")
		return
	}

	c := category.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if err := h.categories.Create(r.Context(), &c); err != nil {
		if errors.Is(err, category.ErrNameTaken) {
			writeError(w, r, http.StatusBadRequest, "Category already exists")
			return
		}
		serverError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"success":  true,
		"category": categoryView{ID: c.ID, Name: c.Name, Description: c.Description},
	})
}
