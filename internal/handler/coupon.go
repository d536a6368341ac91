package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

// validateCoupon checks a code against an order amount under the strict
// policy: unusable codes and unmet minimums are client errors, unlike the
// order path where they silently yield no discount.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "Coupon code is required")
		return
	}

	quote, err := h.validator.Apply(r.Context(), req.Code, req.OrderAmount, coupon.PolicyStrict)
	if err != nil {
		var minErr *coupon.MinimumNotMetError
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			writeError(w, r, http.StatusBadRequest, "Invalid or expired coupon")
		case errors.As(err, &minErr):
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("Minimum order amount should be %s", minErr.Minimum.StringFixed(2)))
		default:
			serverError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"coupon": map[string]any{
			"code":           quote.Coupon.Code,
			"discountAmount": quote.Discount,
			"finalAmount":    req.OrderAmount.Sub(quote.Discount),
		},
	})
}

type createCouponRequest struct {
	Code           string              `json:"code"`
	DiscountType   string              `json:"discountType"`
	DiscountValue  decimal.Decimal     `json:"discountValue"`
	MaxDiscount    decimal.NullDecimal `json:"maxDiscount"`
	MinOrderAmount decimal.Decimal     `json:"minOrderAmount"`
	ValidFrom      time.Time           `json:"validFrom"`
	ValidTo        time.Time           `json:"validTo"`
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "Coupon code is required")
		return
	}
	discountType := coupon.DiscountType(req.DiscountType)
	if discountType != coupon.DiscountPercentage && discountType != coupon.DiscountFixed {
		writeError(w, r, http.StatusBadRequest, "Discount type must be percentage or fixed")
		return
	}
	if !req.ValidTo.After(req.ValidFrom) {
		writeError(w, r, http.StatusBadRequest, "Validity window is empty")
		return
	}

	c := coupon.Coupon{
		Code:           code,
		DiscountType:   discountType,
		DiscountValue:  req.DiscountValue,
		MaxDiscount:    req.MaxDiscount,
		MinOrderAmount: req.MinOrderAmount,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		Active:         true,
	}
	if err := h.coupons.Create(r.Context(), &c); err != nil {
		serverError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"success": true,
		"coupon": map[string]any{
			"code":           c.Code,
			"discountType":   string(c.DiscountType),
			"discountValue":  c.DiscountValue,
			"maxDiscount":    c.MaxDiscount,
			"minOrderAmount": c.MinOrderAmount,
			"validFrom":      c.ValidFrom,
			"validTo":        c.ValidTo,
		},
	})
}
