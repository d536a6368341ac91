package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is inactive.
var ErrNotFound = errors.New("product not found")

// InsufficientStockError indicates a requested quantity exceeds the available stock.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s", name)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	CategoryID  string
	// CategoryName is filled on joined reads; empty otherwise.
	CategoryName string
	CreatedAt    time.Time
}

// ListFilter narrows and pages a catalog listing. Zero values mean no filter;
// Page is 1-based.
type ListFilter struct {
	Page       int
	Limit      int
	CategoryID string
	Search     string
}

// Repository defines catalog persistence. DecrementStock is the stock ledger
// primitive: it must decrement atomically and only when enough stock remains,
// re-checking at update time regardless of prior reads.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetActiveByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	SetStock(ctx context.Context, id string, stock int) (*Product, error)
	DecrementStock(ctx context.Context, id string, quantity int) (*Product, error)
	All(ctx context.Context) ([]Product, error)
}
