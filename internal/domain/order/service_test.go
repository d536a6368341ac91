package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront/internal/domain/coupon"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/user"
	"github.com/oakmart/storefront/internal/notify"
)

// --- Fakes ---

// fakeStore is an in-memory product catalog and order store. Create applies
// the same all-or-nothing conditional decrement the real repository runs in
// a transaction, so concurrency properties can be exercised here.
type fakeStore struct {
	mu        sync.Mutex
	products  map[string]*product.Product
	orders    map[string]*Order
	coupons   map[string]*coupon.Coupon
	createErr error
}

func newFakeStore(products ...product.Product) *fakeStore {
	s := &fakeStore{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*Order),
		coupons:  make(map[string]*coupon.Coupon),
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

// product.Repository (subset used by the service)

func (s *fakeStore) List(context.Context, product.ListFilter) ([]product.Product, int, error) {
	return nil, 0, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || !p.Active {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetActiveByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, p *product.Product) error { return nil }

func (s *fakeStore) SetStock(_ context.Context, id string, stock int) (*product.Product, error) {
	return nil, nil
}

func (s *fakeStore) DecrementStock(_ context.Context, id string, qty int) (*product.Product, error) {
	return nil, nil
}

func (s *fakeStore) All(context.Context) ([]product.Product, error) { return nil, nil }

// coupon.Repository

func (s *fakeStore) FindUsable(_ context.Context, code string, asOf time.Time) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok || !c.Active || asOf.Before(c.ValidFrom) || asOf.After(c.ValidTo) {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) CreateCoupon(_ context.Context, c *coupon.Coupon) error { return nil }

// order.Repository

func (s *fakeStore) createOrder(o *Order, redeem bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}

	// All-or-nothing conditional decrement: validate every line, then apply.
	for _, item := range o.Items {
		p, ok := s.products[item.ProductID]
		if !ok || !p.Active {
			return product.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return &product.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
			}
		}
	}
	for _, item := range o.Items {
		s.products[item.ProductID].Stock -= item.Quantity
	}

	if redeem {
		if c, ok := s.coupons[o.CouponCode]; ok {
			c.UsedCount++
		}
	}

	stored := *o
	stored.CreatedAt = time.Now()
	s.orders[o.ID] = &stored
	return nil
}

func (s *fakeStore) GetExpanded(_ context.Context, id string) (*Expanded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	products := make(map[string]product.Product, len(o.Items))
	for _, item := range o.Items {
		if p, ok := s.products[item.ProductID]; ok {
			products[item.ProductID] = *p
		}
	}
	return &Expanded{
		Order:    *o,
		User:     user.Summary{ID: o.UserID, Name: "Test User", Email: "test@example.com"},
		Products: products,
	}, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID string) ([]Expanded, error) {
	return nil, nil
}

func (s *fakeStore) ListAll(context.Context) ([]Expanded, error) { return nil, nil }

// orderRepo adapts fakeStore to the Repository interface.
type orderRepo struct{ store *fakeStore }

func (r orderRepo) Create(_ context.Context, o *Order, redeem bool) error {
	return r.store.createOrder(o, redeem)
}
func (r orderRepo) GetExpanded(ctx context.Context, id string) (*Expanded, error) {
	return r.store.GetExpanded(ctx, id)
}
func (r orderRepo) ListByUser(ctx context.Context, userID string) ([]Expanded, error) {
	return r.store.ListByUser(ctx, userID)
}
func (r orderRepo) ListAll(ctx context.Context) ([]Expanded, error) {
	return r.store.ListAll(ctx)
}

// couponRepo adapts fakeStore to coupon.Repository.
type couponRepo struct{ store *fakeStore }

func (r couponRepo) FindUsable(ctx context.Context, code string, asOf time.Time) (*coupon.Coupon, error) {
	return r.store.FindUsable(ctx, code, asOf)
}
func (r couponRepo) Create(ctx context.Context, c *coupon.Coupon) error {
	return r.store.CreateCoupon(ctx, c)
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Publish(_ context.Context, event string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// --- Helpers ---

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestProduct(id, name string, price string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   name,
		Price:  d(price),
		Stock:  stock,
		Active: true,
	}
}

func newTestService(store *fakeStore) (*Service, *recordingSink) {
	sink := &recordingSink{}
	svc := NewService(
		store,
		coupon.NewValidator(couponRepo{store}),
		orderRepo{store},
		sink,
	)
	return svc, sink
}

func addCoupon(store *fakeStore, c coupon.Coupon) {
	if c.ValidFrom.IsZero() {
		c.ValidFrom = time.Now().Add(-time.Hour)
	}
	if c.ValidTo.IsZero() {
		c.ValidTo = time.Now().Add(time.Hour)
	}
	c.Active = true
	store.coupons[c.Code] = &c
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 5))
	svc, _ := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "missing", Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_InactiveProductNotFound(t *testing.T) {
	p := newTestProduct("p1", "Widget", "10.00", 5)
	p.Active = false
	svc, _ := newTestService(newFakeStore(p))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
}

func TestPlaceOrder_ExactStockSucceeds(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 5))
	svc, _ := newTestService(store)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 5}},
	})

	require.NoError(t, err)
	assert.True(t, d("50.00").Equal(result.Order.TotalAmount))
	assert.Equal(t, 0, store.products["p1"].Stock)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 5))
	svc, _ := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 6}},
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 5, store.products["p1"].Stock, "failed order must not touch stock")
}

func TestPlaceOrder_MultiItemAllOrNothing(t *testing.T) {
	store := newFakeStore(
		newTestProduct("p1", "Widget", "10.00", 10),
		newTestProduct("p2", "Gadget", "20.00", 1),
	)
	svc, _ := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items: []ItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 10, store.products["p1"].Stock, "item 1 stock must stay untouched")
	assert.Equal(t, 1, store.products["p2"].Stock)
}

func TestPlaceOrder_CouponApplied(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "100.00", 10))
	addCoupon(store, coupon.Coupon{
		Code:           "SAVE10",
		DiscountType:   coupon.DiscountPercentage,
		DiscountValue:  d("10"),
		MinOrderAmount: d("100"),
	})
	svc, _ := newTestService(store)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "u1",
		Items:      []ItemRequest{{ProductID: "p1", Quantity: 2}},
		CouponCode: "SAVE10",
	})

	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(result.Order.DiscountAmount))
	assert.True(t, d("180.00").Equal(result.Order.TotalAmount))
	assert.Equal(t, "SAVE10", result.Order.CouponCode)
	assert.Equal(t, 1, store.coupons["SAVE10"].UsedCount)
}

func TestPlaceOrder_CouponBelowMinimumIgnored(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "50.00", 10))
	addCoupon(store, coupon.Coupon{
		Code:           "SAVE10",
		DiscountType:   coupon.DiscountPercentage,
		DiscountValue:  d("10"),
		MinOrderAmount: d("100"),
	})
	svc, _ := newTestService(store)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "u1",
		Items:      []ItemRequest{{ProductID: "p1", Quantity: 1}},
		CouponCode: "SAVE10",
	})

	require.NoError(t, err)
	assert.True(t, result.Order.DiscountAmount.IsZero())
	assert.True(t, d("50.00").Equal(result.Order.TotalAmount))
	assert.Empty(t, result.Order.CouponCode)
	assert.Equal(t, 0, store.coupons["SAVE10"].UsedCount, "unused coupon must not be redeemed")
}

func TestPlaceOrder_UnknownCouponIgnored(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "50.00", 10))
	svc, _ := newTestService(store)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:     "u1",
		Items:      []ItemRequest{{ProductID: "p1", Quantity: 1}},
		CouponCode: "NOPE",
	})

	require.NoError(t, err)
	assert.True(t, result.Order.DiscountAmount.IsZero())
	assert.True(t, d("50.00").Equal(result.Order.TotalAmount))
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 10))
	svc, _ := newTestService(store)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, err)

	// A later price change must not alter the stored item price.
	store.mu.Lock()
	store.products["p1"].Price = d("999.00")
	store.mu.Unlock()

	stored := store.orders[result.Order.ID]
	assert.True(t, d("10.00").Equal(stored.Items[0].Price))
	assert.True(t, d("20.00").Equal(stored.TotalAmount))
}

func TestPlaceOrder_EmitsEvents(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 10))
	svc, sink := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{notify.EventOrderCreated, notify.EventStockUpdated}, sink.events)
}

func TestPlaceOrder_CreateError(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 10))
	store.createErr = errors.New("db write failed")
	svc, sink := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "u1",
		Items:  []ItemRequest{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Empty(t, sink.events, "no events on failed placement")
}

func TestPlaceOrder_ConcurrentPlacements(t *testing.T) {
	store := newFakeStore(newTestProduct("p1", "Widget", "10.00", 5))
	svc, _ := newTestService(store)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID: "u1",
				Items:  []ItemRequest{{ProductID: "p1", Quantity: 3}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var okCount, stockErrCount int
	for err := range results {
		switch {
		case err == nil:
			okCount++
		default:
			var stockErr *product.InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
			stockErrCount++
		}
	}

	assert.Equal(t, 1, okCount, "exactly one placement wins")
	assert.Equal(t, 1, stockErrCount)
	assert.Equal(t, 2, store.products["p1"].Stock)
	assert.GreaterOrEqual(t, store.products["p1"].Stock, 0, "stock never negative")
}
