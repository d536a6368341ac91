package repository_test

import (
	"context"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/oakmart/storefront/internal/domain/category"
	"github.com/oakmart/storefront/internal/domain/coupon"
	"github.com/oakmart/storefront/internal/domain/product"
	"github.com/oakmart/storefront/internal/domain/user"
)

// startPostgres runs a disposable PostgreSQL container with the project
// schema applied and returns the container plus its connection string.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithInitScripts("../../db/migrations/001_schema.sql"),
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}
	return container, connStr, nil
}

func fakeCategory() category.Category {
	return category.Category{
		ID:          uuid.NewString(),
		Name:        gofakeit.ProductCategory() + " " + uuid.NewString()[:8],
		Description: gofakeit.Sentence(6),
		Active:      true,
	}
}

func fakeProduct(categoryID string, stock int) product.Product {
	return product.Product{
		ID:          uuid.NewString(),
		Name:        gofakeit.ProductName(),
		Description: gofakeit.Sentence(8),
		Price:       decimal.NewFromFloat(gofakeit.Price(1, 500)).Round(2),
		Stock:       stock,
		Active:      true,
		CategoryID:  categoryID,
	}
}

func fakeUser() user.User {
	return user.User{
		ID:           uuid.NewString(),
		Name:         gofakeit.Name(),
		Email:        strings.ToLower(uuid.NewString()[:8]) + "@" + gofakeit.DomainName(),
		PasswordHash: gofakeit.UUID(),
		Role:         user.RoleCustomer,
	}
}

func fakeCoupon(code string) coupon.Coupon {
	now := time.Now().UTC()
	return coupon.Coupon{
		Code:           code,
		DiscountType:   coupon.DiscountPercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.Zero,
		ValidFrom:      now.Add(-time.Hour),
		ValidTo:        now.Add(24 * time.Hour),
		Active:         true,
	}
}
