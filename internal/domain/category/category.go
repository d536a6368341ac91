// Package category holds the catalog grouping model. Categories are
// reference data: products point at them, nothing owns them.
package category

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrNameTaken = errors.New("category name already exists")
)

// Category groups related products.
type Category struct {
	ID          string
	Name        string
	Description string
	Active      bool
}

// Repository defines category persistence.
type Repository interface {
	List(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, c *Category) error
}
