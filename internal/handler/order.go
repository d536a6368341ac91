package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/order"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/user"
)

type orderItemView struct {
	Product  *productView    `json:"product,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type orderView struct {
	ID              string          `json:"id"`
	User            *user.Summary   `json:"user,omitempty"`
	Items           []orderItemView `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func viewOrder(e order.Expanded, includeUser bool) orderView {
	items := make([]orderItemView, len(e.Order.Items))
	for i, item := range e.Order.Items {
		view := orderItemView{Quantity: item.Quantity, Price: item.Price}
		if p, ok := e.Products[item.ProductID]; ok {
			pv := viewProduct(p)
			view.Product = &pv
		}
		items[i] = view
	}

	v := orderView{
		ID:              e.Order.ID,
		Items:           items,
		TotalAmount:     e.Order.TotalAmount,
		DiscountAmount:  e.Order.DiscountAmount,
		ShippingAddress: e.Order.ShippingAddress,
		CouponCode:      e.Order.CouponCode,
		Status:          string(e.Order.Status),
		CreatedAt:       e.Order.CreatedAt,
	}
	if includeUser {
		u := e.User
		v.User = &u
	}
	return v
}

func viewOrders(orders []order.Expanded, includeUser bool) []orderView {
	views := make([]orderView, len(orders))
	for i, e := range orders {
		views[i] = viewOrder(e, includeUser)
	}
	return views
}

type placeOrderRequest struct {
	Items []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress string `json:"shippingAddress"`
	CouponCode      string `json:"couponCode"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.Product, Quantity: item.Quantity}
	}

	placed, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          u.ID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		h.writePlaceOrderError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"success": true,
		"order":   viewOrder(*placed, true),
	})
}

func (h *Handler) writePlaceOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr    *product.InsufficientStockError
		notFoundErr *order.ProductNotFoundError
		qtyErr      *order.InvalidQuantityError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, r, http.StatusBadRequest, "Order must contain at least one item")
	case errors.As(err, &qtyErr):
		writeError(w, r, http.StatusBadRequest, "Quantity must be positive")
	case errors.As(err, &stockErr):
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Insufficient stock for %s", stockErr.Name))
	case errors.As(err, &notFoundErr), errors.Is(err, product.ErrNotFound):
		writeError(w, r, http.StatusBadRequest, "Insufficient stock for product")
	default:
		serverError(w, r, err)
	}
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Not authorized")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), u.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"orders":  viewOrders(orders, false),
	})
}

func (h *Handler) allOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"orders":  viewOrders(orders, true),
	})
}
