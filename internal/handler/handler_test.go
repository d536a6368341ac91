package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/category"
	"github.com/oakmart/storefront/internal/domain/coupon"
	"github.com/oakmart/storefront/internal/domain/order"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/report"
	"github.com/oakmart/storefront/internal/domain/user"
)

// memStore is a single in-memory backing store for all fake repositories, so
// order placement observes the same products the catalog serves.
type memStore struct {
	mu         sync.Mutex
	users      map[string]user.User
	products   map[string]product.Product
	categories map[string]category.Category
	coupons    map[string]coupon.Coupon
	orders     map[string]order.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]user.User),
		products:   make(map[string]product.Product),
		categories: make(map[string]category.Category),
		coupons:    make(map[string]coupon.Coupon),
		orders:     make(map[string]order.Order),
	}
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

type memProducts struct{ s *memStore }

func (r memProducts) List(_ context.Context, filter product.ListFilter) ([]product.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []product.Product
	for _, p := range r.s.products {
		if !p.Active {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r memProducts) GetActiveByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.CreatedAt = time.Now()
	r.s.products[p.ID] = *p
	return nil
}

func (r memProducts) SetStock(_ context.Context, id string, stock int) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.Stock = stock
	r.s.products[id] = p
	return &p, nil
}

func (r memProducts) DecrementStock(_ context.Context, id string, quantity int) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.decrementLocked(id, quantity)
}

func (r memProducts) All(_ context.Context) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) decrementLocked(id string, quantity int) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok || !p.Active {
		return nil, product.ErrNotFound
	}
	if p.Stock < quantity {
		return nil, &product.InsufficientStockError{ProductID: id, Name: p.Name, Requested: quantity}
	}
	p.Stock -= quantity
	s.products[id] = p
	return &p, nil
}

type memCategories struct{ s *memStore }

func (r memCategories) List(_ context.Context) ([]category.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []category.Category
	for _, c := range r.s.categories {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memCategories) Create(_ context.Context, c *category.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categories {
		if existing.Name == c.Name {
			return category.ErrNameTaken
		}
	}
	r.s.categories[c.ID] = *c
	return nil
}

type memCoupons struct{ s *memStore }

func (r memCoupons) FindUsable(_ context.Context, code string, asOf time.Time) (*coupon.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok || !c.Active || asOf.Before(c.ValidFrom) || asOf.After(c.ValidTo) {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (r memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.coupons[c.Code] = *c
	return nil
}

type memOrders struct{ s *memStore }

func (r memOrders) Create(_ context.Context, o *order.Order, redeemCoupon bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// All-or-nothing: re-check every decrement before mutating.
	for _, item := range o.Items {
		p, ok := r.s.products[item.ProductID]
		if !ok || !p.Active {
			return product.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return &product.InsufficientStockError{
				ProductID: item.ProductID, Name: p.Name, Requested: item.Quantity,
			}
		}
	}
	for _, item := range o.Items {
		if _, err := r.s.decrementLocked(item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	if redeemCoupon && o.CouponCode != "" {
		c := r.s.coupons[o.CouponCode]
		c.UsedCount++
		r.s.coupons[o.CouponCode] = c
	}
	o.CreatedAt = time.Now()
	r.s.orders[o.ID] = *o
	return nil
}

func (r memOrders) GetExpanded(_ context.Context, id string) (*order.Expanded, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, errors.Errorf("order %s not found", id)
	}
	e := r.s.expandLocked(o)
	return &e, nil
}

func (r memOrders) ListByUser(_ context.Context, userID string) ([]order.Expanded, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.Expanded
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, r.s.expandLocked(o))
		}
	}
	return out, nil
}

func (r memOrders) ListAll(_ context.Context) ([]order.Expanded, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.Expanded
	for _, o := range r.s.orders {
		out = append(out, r.s.expandLocked(o))
	}
	return out, nil
}

func (s *memStore) expandLocked(o order.Order) order.Expanded {
	e := order.Expanded{Order: o, Products: make(map[string]product.Product)}
	if u, ok := s.users[o.UserID]; ok {
		e.User = u.Summary()
	}
	for _, item := range o.Items {
		if p, ok := s.products[item.ProductID]; ok {
			e.Products[item.ProductID] = p
		}
	}
	return e
}

// stubReportSource returns fixed aggregates so report handler tests don't
// need a database.
type stubReportSource struct{}

func (stubReportSource) SalesSummary(context.Context, time.Time, time.Time) (report.Summary, error) {
	return report.Summary{
		TotalOrders:   2,
		TotalRevenue:  decimal.NewFromInt(300),
		AvgOrderValue: decimal.NewFromInt(150),
	}, nil
}

func (stubReportSource) TopProducts(context.Context, time.Time, time.Time, int) ([]report.ProductRevenue, error) {
	return []report.ProductRevenue{
		{Name: "Waffle", Revenue: decimal.NewFromInt(200), QuantitySold: 20},
	}, nil
}
