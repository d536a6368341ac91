package audit

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oakmart/storefront/internal/domain/product"
)

type stubProducts struct {
	product.Repository

	all []product.Product
	err error
}

func (s *stubProducts) All(context.Context) ([]product.Product, error) {
	return s.all, s.err
}

func TestRun_LogsEveryProduct(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := &stubProducts{all: []product.Product{
		{ID: "p1", Name: "Widget", Stock: 5},
		{ID: "p2", Name: "Gadget", Stock: 0},
	}}

	a, err := New(repo, zap.New(core), "0 0 * * *")
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background()))

	entries := logs.FilterMessage("stock audit entry").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Widget", entries[0].ContextMap()["name"])
	assert.Equal(t, int64(5), entries[0].ContextMap()["stock"])
}

func TestRun_ListError(t *testing.T) {
	repo := &stubProducts{err: errors.New("db down")}

	a, err := New(repo, zap.NewNop(), "0 0 * * *")
	require.NoError(t, err)

	require.Error(t, a.Run(context.Background()))
}

func TestNew_BadSchedule(t *testing.T) {
	_, err := New(&stubProducts{}, zap.NewNop(), "not a schedule")
	require.Error(t, err)
}
