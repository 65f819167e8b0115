package service

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

func TestInventoryService_CreateEntry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")

	e := f.stock(t, p, it, 25, "3.20")
	assert.Equal(t, domain.DefaultLowStockThreshold, e.LowStockThreshold)
	assert.True(t, e.IsAvailable)
	assert.Equal(t, domain.StockStatusInStock, e.StockStatus)

	t.Run("duplicate pair", func(t *testing.T) {
		_, err := f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: it.ID, Quantity: 1, Price: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
	})
	t.Run("unknown pharmacy", func(t *testing.T) {
		_, err := f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: uuid.New(), ItemID: it.ID, Price: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("unknown item", func(t *testing.T) {
		_, err := f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: uuid.New(), Price: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("negative quantity", func(t *testing.T) {
		other := f.item(t, "Ibuprofen", "NSAID")
		_, err := f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: other.ID, Quantity: -1})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})
	t.Run("zero quantity with custom threshold", func(t *testing.T) {
		other := f.item(t, "Aspirin", "Analgesic")
		e, err := f.ledger.CreateEntry(ctx, CreateEntryInput{
			PharmacyID:        p.ID,
			ItemID:            other.ID,
			Price:             decimal.NewFromInt(2),
			LowStockThreshold: intPtr(3),
			IsAvailable:       boolPtr(false),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusOutOfStock, e.StockStatus)
		assert.Equal(t, 3, e.LowStockThreshold)
		assert.False(t, e.IsAvailable)
	})
}

func TestInventoryService_AdjustEntry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	e := f.stock(t, p, it, 25, "3.20")

	got, err := f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{Quantity: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, domain.StockStatusLowStock, got.StockStatus)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("3.20")), "price must be untouched")

	got, err = f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{LowStockThreshold: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, domain.StockStatusInStock, got.StockStatus, "threshold change must recompute status")

	price := decimal.RequireFromString("2.75")
	got, err = f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{Quantity: intPtr(0), Price: &price})
	require.NoError(t, err)
	assert.Equal(t, domain.StockStatusOutOfStock, got.StockStatus)
	assert.True(t, got.Price.Equal(price))

	_, err = f.ledger.AdjustEntry(ctx, uuid.New(), EntryPatch{Quantity: intPtr(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{Quantity: intPtr(-3)})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestInventoryService_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	f.stock(t, p, it, 5, "3.20")

	_, err := f.ledger.Reserve(ctx, p.ID, it.ID, 6)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, it.ID, ise.ItemID)
	assert.Equal(t, 5, f.quantity(t, p, it))

	_, err = f.ledger.Reserve(ctx, p.ID, it.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.ledger.Release(ctx, p.ID, it.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.ledger.Reserve(ctx, p.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	e, err := f.ledger.Reserve(ctx, p.ID, it.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Quantity)
	assert.Equal(t, domain.StockStatusOutOfStock, e.StockStatus)

	e, err = f.ledger.Release(ctx, p.ID, it.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, e.Quantity)
	assert.Equal(t, domain.StockStatusInStock, e.StockStatus)
}

func TestInventoryService_RandomSequenceKeepsInvariants(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	f.stock(t, p, it, 15, "1.00")

	rng := rand.New(rand.NewSource(42))
	expected := 15
	for i := 0; i < 500; i++ {
		n := rng.Intn(8) + 1
		var (
			e   *domain.InventoryEntry
			err error
		)
		if rng.Intn(2) == 0 {
			e, err = f.ledger.Reserve(ctx, p.ID, it.ID, n)
			if n > expected {
				require.ErrorIs(t, err, domain.ErrInsufficientStock)
				continue
			}
			expected -= n
		} else {
			e, err = f.ledger.Release(ctx, p.ID, it.ID, n)
			expected += n
		}
		require.NoError(t, err)
		require.Equal(t, expected, e.Quantity)
		require.GreaterOrEqual(t, e.Quantity, 0)
		require.Equal(t, domain.DeriveStockStatus(e.Quantity, e.LowStockThreshold), e.StockStatus)
	}
	assert.Equal(t, expected, f.quantity(t, p, it))
}

func TestInventoryService_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	f.stock(t, p, it, 100, "1.00")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Reserve(ctx, p.ID, it.ID, 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), ok.Load())
	assert.Equal(t, 0, f.quantity(t, p, it))
}

func TestInventoryService_LowStockEvent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	f.stock(t, p, it, 12, "1.00")

	_, err := f.ledger.Reserve(ctx, p.ID, it.ID, 1)
	require.NoError(t, err)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, eventOfType(domain.EventStockLevelChanged))

	_, err = f.ledger.Reserve(ctx, p.ID, it.ID, 3)
	require.NoError(t, err)
	f.events.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		ev, ok := e.(domain.StockLevelChanged)
		return ok && ev.From == domain.StockStatusInStock && ev.To == domain.StockStatusLowStock && ev.Quantity == 8
	}))
}

func TestInventoryService_RemoveEntry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")
	e := f.stock(t, p, it, 3, "1.00")

	require.NoError(t, f.ledger.RemoveEntry(ctx, e.ID))
	assert.ErrorIs(t, f.ledger.RemoveEntry(ctx, e.ID), domain.ErrNotFound)

	list, err := f.ledger.ListPharmacyInventory(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.ledger.ListPharmacyInventory(ctx, uuid.New(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryService_RejectsValuesTheLedgerCannotStore(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.pharmacy(t, "Central", "Beirut")
	it := f.item(t, "Paracetamol", "Analgesic")

	_, err := f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: it.ID, Quantity: 1, Price: decimal.RequireFromString("1.005")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sub-cent price")
	_, err = f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: it.ID, Quantity: domain.MaxQuantity + 1, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.ledger.CreateEntry(ctx, CreateEntryInput{PharmacyID: p.ID, ItemID: it.ID, Quantity: 1, Price: decimal.NewFromInt(1), LowStockThreshold: intPtr(domain.MaxQuantity + 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	e := f.stock(t, p, it, 5, "1.50")
	price := decimal.RequireFromString("2.999")
	_, err = f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{Price: &price})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.ledger.AdjustEntry(ctx, e.ID, EntryPatch{Quantity: intPtr(domain.MaxQuantity + 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.ledger.Release(ctx, p.ID, it.ID, domain.MaxQuantity)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "release would overflow the column")
	assert.Equal(t, 5, f.quantity(t, p, it))

	got, err := f.ledger.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1.50")))
}
