package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func eventOfType(t domain.EventType) any {
	return mock.MatchedBy(func(e domain.Event) bool { return e.Type() == t })
}

type fixture struct {
	store     *repository.MemoryStore
	catalog   *repository.MemoryCatalog
	orderRepo *repository.MemoryOrders
	tx        *repository.MemoryTx
	events    *mockPublisher

	ledger *InventoryService
	orders *OrderService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{
		store:     store,
		catalog:   repository.NewMemoryCatalog(store),
		orderRepo: repository.NewMemoryOrders(store),
		tx:        repository.NewMemoryTx(store),
		events:    &mockPublisher{},
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.ledger = NewInventoryService(f.catalog, store, f.events)
	f.orders = NewOrderService(f.catalog, f.ledger, f.orderRepo, f.tx, f.events)
	return f
}

func (f *fixture) pharmacy(t *testing.T, name, city string) domain.Pharmacy {
	t.Helper()
	p := domain.Pharmacy{Name: name, Address: domain.Address{Street: "1 Main St", City: city}, IsOpen: true}
	require.NoError(t, f.catalog.SavePharmacy(context.Background(), &p))
	return p
}

func (f *fixture) item(t *testing.T, name, category string) domain.Item {
	t.Helper()
	it := domain.Item{Name: name, Category: category, BasePrice: decimal.NewFromInt(1)}
	require.NoError(t, f.catalog.SaveItem(context.Background(), &it))
	return it
}

func (f *fixture) stock(t *testing.T, p domain.Pharmacy, it domain.Item, qty int, price string) *domain.InventoryEntry {
	t.Helper()
	e, err := f.ledger.CreateEntry(context.Background(), CreateEntryInput{
		PharmacyID: p.ID,
		ItemID:     it.ID,
		Quantity:   qty,
		Price:      decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) quantity(t *testing.T, p domain.Pharmacy, it domain.Item) int {
	t.Helper()
	e, err := f.ledger.FindEntry(context.Background(), p.ID, it.ID)
	require.NoError(t, err)
	return e.Quantity
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func line(it domain.Item, qty int) OrderLineInput {
	return OrderLineInput{ItemID: it.ID, Quantity: qty}
}

var customer = uuid.MustParse("6f1c2a1e-0c39-4d5b-9d7e-3b3f4a5e6c70")

type brokenOrderRepo struct {
	repository.OrderRepository
	err error
}

func (b brokenOrderRepo) Create(context.Context, *domain.Order) error { return b.err }

func orderFilterForCustomer(id uuid.UUID) repository.OrderFilter {
	return repository.OrderFilter{CustomerID: &id}
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []domain.Event
	onPublish func(domain.Event)
}

func (r *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	if r.onPublish != nil {
		r.onPublish(event)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

// pairRecorder remembers the item id of every UpdateByPair call.
type pairRecorder struct {
	repository.InventoryRepository
	mu    sync.Mutex
	items []uuid.UUID
}

func (p *pairRecorder) UpdateByPair(ctx context.Context, pharmacyID, itemID uuid.UUID, fn repository.MutateFunc) (*domain.InventoryEntry, error) {
	p.mu.Lock()
	p.items = append(p.items, itemID)
	p.mu.Unlock()
	return p.InventoryRepository.UpdateByPair(ctx, pharmacyID, itemID, fn)
}

func (p *pairRecorder) calls() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.items...)
}
