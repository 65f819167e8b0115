package repository

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

type pairKey struct {
	pharmacyID uuid.UUID
	itemID     uuid.UUID
}

// MemoryStore объединённое in-memory хранилище каталога, склада и заказов
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	items      map[uuid.UUID]domain.Item
	pharmacies map[uuid.UUID]domain.Pharmacy

	entries     map[uuid.UUID]domain.InventoryEntry
	entryByPair map[pairKey]uuid.UUID
	entryOrder  []uuid.UUID

	orders       map[uuid.UUID]domain.Order
	orderNumbers map[string]uuid.UUID
	orderSeq     []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		items:        make(map[uuid.UUID]domain.Item),
		pharmacies:   make(map[uuid.UUID]domain.Pharmacy),
		entries:      make(map[uuid.UUID]domain.InventoryEntry),
		entryByPair:  make(map[pairKey]uuid.UUID),
		orders:       make(map[uuid.UUID]domain.Order),
		orderNumbers: make(map[string]uuid.UUID),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ InventoryRepository = (*MemoryStore)(nil)
	_ CatalogRepository   = (*MemoryCatalog)(nil)
	_ OrderRepository     = (*MemoryOrders)(nil)
	_ TxManager           = (*MemoryTx)(nil)
)

// InventoryRepository implementation

func (m *MemoryStore) Create(ctx context.Context, e *domain.InventoryEntry) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	key := pairKey{pharmacyID: e.PharmacyID, itemID: e.ItemID}
	if _, ok := m.entryByPair[key]; ok {
		return domain.ErrDuplicateEntry
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := m.now()
	e.CreatedAt = now
	e.UpdatedAt = now
	m.entries[e.ID] = *e
	m.entryByPair[key] = e.ID
	m.entryOrder = append(m.entryOrder, e.ID)
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.InventoryEntry, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.NewNotFound("inventory entry", id)
	}
	// return copy
	cp := e
	return &cp, nil
}

func (m *MemoryStore) GetByPair(ctx context.Context, pharmacyID, itemID uuid.UUID) (*domain.InventoryEntry, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	id, ok := m.entryByPair[pairKey{pharmacyID: pharmacyID, itemID: itemID}]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "inventory entry", ID: pharmacyID.String() + "/" + itemID.String()}
	}
	cp := m.entries[id]
	return &cp, nil
}

func (m *MemoryStore) UpdateByID(ctx context.Context, id uuid.UUID, fn MutateFunc) (*domain.InventoryEntry, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.entries[id]; !ok {
		return nil, domain.NewNotFound("inventory entry", id)
	}
	return m.mutateLocked(id, fn)
}

func (m *MemoryStore) UpdateByPair(ctx context.Context, pharmacyID, itemID uuid.UUID, fn MutateFunc) (*domain.InventoryEntry, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	id, ok := m.entryByPair[pairKey{pharmacyID: pharmacyID, itemID: itemID}]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "inventory entry", ID: pharmacyID.String() + "/" + itemID.String()}
	}
	return m.mutateLocked(id, fn)
}

// mutateLocked works on a copy so a failed fn leaves the stored entry untouched.
func (m *MemoryStore) mutateLocked(id uuid.UUID, fn MutateFunc) (*domain.InventoryEntry, error) {
	cp := m.entries[id]
	if err := fn(&cp); err != nil {
		return nil, err
	}
	// identity fields are not mutable
	orig := m.entries[id]
	cp.ID, cp.PharmacyID, cp.ItemID, cp.CreatedAt = orig.ID, orig.PharmacyID, orig.ItemID, orig.CreatedAt
	cp.UpdatedAt = m.now()
	m.entries[id] = cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	e, ok := m.entries[id]
	if !ok {
		return domain.NewNotFound("inventory entry", id)
	}
	delete(m.entries, id)
	delete(m.entryByPair, pairKey{pharmacyID: e.PharmacyID, itemID: e.ItemID})
	m.entryOrder = slices.DeleteFunc(m.entryOrder, func(x uuid.UUID) bool { return x == id })
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f InventoryFilter) ([]domain.InventoryEntry, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.InventoryEntry, 0)
	for _, id := range m.entryOrder {
		e := m.entries[id]
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// CatalogRepository implementation on wrapper type
type MemoryCatalog struct{ store *MemoryStore }

func NewMemoryCatalog(store *MemoryStore) *MemoryCatalog { return &MemoryCatalog{store: store} }

func (mc *MemoryCatalog) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	it, ok := mc.store.items[id]
	if !ok {
		return nil, domain.NewNotFound("item", id)
	}
	return &it, nil
}

func (mc *MemoryCatalog) GetPharmacy(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	p, ok := mc.store.pharmacies[id]
	if !ok {
		return nil, domain.NewNotFound("pharmacy", id)
	}
	return &p, nil
}

func (mc *MemoryCatalog) ListItemsMatching(ctx context.Context, f ItemFilter) ([]domain.Item, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.Item, 0)
	for _, it := range mc.store.items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (mc *MemoryCatalog) SaveItem(ctx context.Context, it *domain.Item) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	mc.store.items[it.ID] = *it
	return nil
}

func (mc *MemoryCatalog) SavePharmacy(ctx context.Context, p *domain.Pharmacy) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	mc.store.pharmacies[p.ID] = *p
	return nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.orderNumbers[o.OrderNumber]; ok {
		return &domain.StorageError{Op: "orders.create", Err: fmt.Errorf("order number %s already exists", o.OrderNumber)}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = mo.store.now()
	o.UpdatedAt = o.CreatedAt
	mo.store.orders[o.ID] = o.Clone()
	mo.store.orderNumbers[o.OrderNumber] = o.ID
	mo.store.orderSeq = append(mo.store.orderSeq, o.ID)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, domain.NewNotFound("order", id)
	}
	cp := o.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) UpdateByID(ctx context.Context, id uuid.UUID, fn func(o *domain.Order) error) (*domain.Order, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, domain.NewNotFound("order", id)
	}
	cp := o.Clone()
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.ID, cp.OrderNumber, cp.CreatedAt = o.ID, o.OrderNumber, o.CreatedAt
	mo.store.orders[id] = cp.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for i := len(mo.store.orderSeq) - 1; i >= 0; i-- {
		o := mo.store.orders[mo.store.orderSeq[i]]
		if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
			continue
		}
		if f.PharmacyID != nil && o.PharmacyID != *f.PharmacyID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	return out, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested calls join the outer transaction
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
