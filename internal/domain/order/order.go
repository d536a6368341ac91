package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/user"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial state of every placed order.
	StatusPending Status = "pending"
	// StatusCancelled is a terminal state excluded from revenue reporting.
	StatusCancelled Status = "cancelled"
)

// Item is a single order line. Price is the unit price captured at order
// time; later catalog price changes never alter a placed order.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a placed customer order. Items are embedded by value and the
// record is immutable after creation apart from status transitions.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	TotalAmount     decimal.Decimal
	DiscountAmount  decimal.Decimal
	ShippingAddress string
	CouponCode      string
	Status          Status
	CreatedAt       time.Time
}

// Expanded is an order joined with its owner and the referenced products,
// keyed by product ID.
type Expanded struct {
	Order    Order
	User     user.Summary
	Products map[string]product.Product
}

// Repository defines order persistence.
//
// Create is atomic: in one transaction it inserts the order, conditionally
// decrements stock for every item (failing the whole operation when any
// product is missing, inactive, or short on stock), and, when redeemCoupon
// is set, increments the coupon's usage counter. A failure leaves no
// partial stock decremented and no order recorded.
type Repository interface {
	Create(ctx context.Context, o *Order, redeemCoupon bool) error
	GetExpanded(ctx context.Context, id string) (*Expanded, error)
	ListByUser(ctx context.Context, userID string) ([]Expanded, error)
	ListAll(ctx context.Context) ([]Expanded, error)
}
