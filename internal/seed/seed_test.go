package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/messaging"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
	"github.com/Eddy0415/PharmaMap-sub000/internal/service"
)

var (
	central = uuid.MustParse("0b6f2a52-7a43-4c0e-9a77-1d1e5e0f0a01")
	seaside = uuid.MustParse("0b6f2a52-7a43-4c0e-9a77-1d1e5e0f0a02")
	panadol = uuid.MustParse("5d3e9c1a-2b4f-4e6a-8c7d-9e0f1a2b3c01")
)

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	catalogRepo := repository.NewMemoryCatalog(store)
	catalog := service.NewCatalogService(catalogRepo)
	ledger := service.NewInventoryService(catalogRepo, store, messaging.Noop{})

	f, err := LoadFile("testdata/seed.yaml")
	require.NoError(t, err)
	require.Len(t, f.Inventory, 3)

	sum, err := Apply(ctx, f, catalog, ledger)
	require.NoError(t, err)
	assert.Equal(t, Summary{Pharmacies: 2, Items: 2, Entries: 3}, sum)

	p, err := catalog.GetPharmacy(ctx, seaside)
	require.NoError(t, err)
	assert.False(t, p.IsOpen)
	assert.Equal(t, "Tripoli", p.Address.City)

	e, err := ledger.FindEntry(ctx, seaside, panadol)
	require.NoError(t, err)
	assert.Equal(t, 15, e.LowStockThreshold)
	assert.Equal(t, domain.StockStatusLowStock, e.StockStatus)
	assert.True(t, e.Price.Equal(decimal.RequireFromString("4.25")))

	e, err = ledger.FindEntry(ctx, central, panadol)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLowStockThreshold, e.LowStockThreshold)
	assert.True(t, e.IsAvailable)

	// re-applying keeps existing stock
	sum, err = Apply(ctx, f, catalog, ledger)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Entries)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("pharmacies:\n  - nme: typo\n"))
	assert.Error(t, err, "unknown fields are rejected")

	f, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Items)

	f, err = Decode(strings.NewReader("items:\n  - name: Broken\n    basePrice: cheap\n"))
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	catalogRepo := repository.NewMemoryCatalog(store)
	_, err = Apply(context.Background(), f, service.NewCatalogService(catalogRepo),
		service.NewInventoryService(catalogRepo, store, messaging.Noop{}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
