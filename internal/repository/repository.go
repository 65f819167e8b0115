package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

// ItemFilter параметры поиска по каталогу
type ItemFilter struct {
	NameSubstring string
	Category      string
}

// CatalogRepository внешний каталог товаров и справочник аптек
type CatalogRepository interface {
	GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	GetPharmacy(ctx context.Context, id uuid.UUID) (*domain.Pharmacy, error)
	// ListItemsMatching returns items ordered by name, then id.
	ListItemsMatching(ctx context.Context, f ItemFilter) ([]domain.Item, error)
	SaveItem(ctx context.Context, it *domain.Item) error
	SavePharmacy(ctx context.Context, p *domain.Pharmacy) error
}

// InventoryFilter параметры выборки складских записей
type InventoryFilter struct {
	PharmacyID   *uuid.UUID
	ItemID       *uuid.UUID
	InStockOnly  bool
	LowStockOnly bool
}

// MutateFunc changes an entry in place; a returned error aborts the update.
type MutateFunc func(e *domain.InventoryEntry) error

// InventoryRepository хранилище складских записей.
// UpdateByID and UpdateByPair apply fn atomically with respect to every other
// update of the same entry.
type InventoryRepository interface {
	Create(ctx context.Context, e *domain.InventoryEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InventoryEntry, error)
	GetByPair(ctx context.Context, pharmacyID, itemID uuid.UUID) (*domain.InventoryEntry, error)
	UpdateByID(ctx context.Context, id uuid.UUID, fn MutateFunc) (*domain.InventoryEntry, error)
	UpdateByPair(ctx context.Context, pharmacyID, itemID uuid.UUID, fn MutateFunc) (*domain.InventoryEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns entries ordered by creation time, then id.
	List(ctx context.Context, f InventoryFilter) ([]domain.InventoryEntry, error)
}

// OrderFilter параметры выборки заказов
type OrderFilter struct {
	CustomerID *uuid.UUID
	PharmacyID *uuid.UUID
	Status     domain.OrderStatus
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// UpdateByID applies fn atomically with respect to other updates of the same order.
	UpdateByID(ctx context.Context, id uuid.UUID, fn func(o *domain.Order) error) (*domain.Order, error)
	// List returns orders newest first.
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
}

// TxManager абстракция транзакции. Для in-memory это глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Match reports whether e passes the filter.
func (f InventoryFilter) Match(e domain.InventoryEntry) bool {
	if f.PharmacyID != nil && e.PharmacyID != *f.PharmacyID {
		return false
	}
	if f.ItemID != nil && e.ItemID != *f.ItemID {
		return false
	}
	if f.InStockOnly && e.Quantity <= 0 {
		return false
	}
	if f.LowStockOnly && !e.StockStatus.Degraded() {
		return false
	}
	return true
}

// Match reports whether it passes the filter.
func (f ItemFilter) Match(it domain.Item) bool {
	if !containsIgnoreCase(it.Name, f.NameSubstring) {
		return false
	}
	return f.Category == "" || strings.EqualFold(it.Category, f.Category)
}
