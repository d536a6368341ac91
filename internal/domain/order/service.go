package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/coupon"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/notify"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist or is
// inactive.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ItemRequest is a requested order line before pricing.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID          string
	Items           []ItemRequest
	ShippingAddress string
	CouponCode      string
}

// Service assembles orders: it validates items, snapshots prices, applies
// coupons best-effort, persists atomically, and emits events.
type Service struct {
	products product.Repository
	coupons  *coupon.Validator
	orders   Repository
	sink     notify.Sink
}

// NewService creates an order Service with the required dependencies.
func NewService(
	products product.Repository,
	coupons *coupon.Validator,
	orders Repository,
	sink notify.Sink,
) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
		sink:     sink,
	}
}

// PlaceOrder runs the order-placement workflow.
//
// Item validation happens entirely before any stock is touched, so a
// mid-order failure never leaves partial decrements. An unusable coupon is
// not an error here: the order proceeds with zero discount
// (coupon.PolicyBestEffort); the standalone validation endpoint is the
// strict counterpart.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Expanded, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product was found; snapshot prices and build
	// the subtotal. Stock feasibility is pre-checked here, but the
	// authoritative check is the conditional decrement at persist time.
	items := make([]Item, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if p.Stock < item.Quantity {
			return nil, &product.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
			}
		}

		items[i] = Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     p.Price,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// Coupon application is best-effort on this path: an unknown code or an
	// unmet minimum quotes a zero discount instead of failing the order.
	quote := coupon.Quote{Discount: decimal.Zero}
	if req.CouponCode != "" {
		quote, err = s.coupons.Apply(ctx, req.CouponCode, subtotal, coupon.PolicyBestEffort)
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
	}

	total := subtotal.Sub(quote.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     total.Round(2),
		DiscountAmount:  quote.Discount.Round(2),
		ShippingAddress: req.ShippingAddress,
		Status:          StatusPending,
	}
	if quote.Redeemable {
		o.CouponCode = quote.Coupon.Code
	}

	// Atomic persist: order insert, per-item conditional stock decrement,
	// and coupon redemption commit or roll back together.
	if err := s.orders.Create(ctx, o, quote.Redeemable); err != nil {
		return nil, err
	}

	expanded, err := s.orders.GetExpanded(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load placed order")
	}

	s.emitPlaced(ctx, expanded)

	return expanded, nil
}

// emitPlaced publishes order-created and per-item stock-updated events.
// Best-effort: the sink never fails the order.
func (s *Service) emitPlaced(ctx context.Context, e *Expanded) {
	s.sink.Publish(ctx, notify.EventOrderCreated, notify.OrderCreated{
		OrderID:     e.Order.ID,
		User:        e.User,
		TotalAmount: e.Order.TotalAmount.StringFixed(2),
		CreatedAt:   e.Order.CreatedAt,
	})

	for _, item := range e.Order.Items {
		p, ok := e.Products[item.ProductID]
		if !ok {
			continue
		}
		s.sink.Publish(ctx, notify.EventStockUpdated, notify.StockUpdated{
			ProductID: p.ID,
			Name:      p.Name,
			Stock:     p.Stock,
		})
	}
}

// ListByUser returns the given user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Expanded, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Expanded, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all orders")
	}
	return orders, nil
}
