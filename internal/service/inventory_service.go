package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// InventoryService складской реестр. Единственный компонент, который меняет quantity.
type InventoryService struct {
	catalog   repository.CatalogRepository
	inventory repository.InventoryRepository
	events    EventPublisher
	now       func() time.Time
	listeners []func(context.Context)
}

func NewInventoryService(catalog repository.CatalogRepository, inventory repository.InventoryRepository, events EventPublisher) *InventoryService {
	return &InventoryService{
		catalog:   catalog,
		inventory: inventory,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OnStockChange registers fn to run after every committed ledger change.
// Must be called before the service is used.
func (s *InventoryService) OnStockChange(fn func(context.Context)) {
	s.listeners = append(s.listeners, fn)
}

// CreateEntryInput параметры новой складской записи
type CreateEntryInput struct {
	PharmacyID        uuid.UUID
	ItemID            uuid.UUID
	Quantity          int
	Price             decimal.Decimal
	LowStockThreshold *int
	IsAvailable       *bool
}

// EntryPatch частичное обновление записи; nil поля не меняются
type EntryPatch struct {
	Quantity          *int
	Price             *decimal.Decimal
	LowStockThreshold *int
	IsAvailable       *bool
}

// CreateEntry создаёт запись для пары (аптека, товар)
func (s *InventoryService) CreateEntry(ctx context.Context, in CreateEntryInput) (*domain.InventoryEntry, error) {
	if in.PharmacyID == uuid.Nil || in.ItemID == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	if in.Quantity < 0 || in.Quantity > domain.MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	if !domain.ValidPrice(in.Price) || !validThreshold(in.LowStockThreshold) {
		return nil, domain.ErrInvalidInput
	}
	if _, err := s.catalog.GetPharmacy(ctx, in.PharmacyID); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetItem(ctx, in.ItemID); err != nil {
		return nil, err
	}

	e := domain.InventoryEntry{
		PharmacyID:        in.PharmacyID,
		ItemID:            in.ItemID,
		Quantity:          in.Quantity,
		Price:             in.Price,
		LowStockThreshold: domain.DefaultLowStockThreshold,
		IsAvailable:       true,
	}
	if in.LowStockThreshold != nil {
		e.LowStockThreshold = *in.LowStockThreshold
	}
	if in.IsAvailable != nil {
		e.IsAvailable = *in.IsAvailable
	}
	e.RecomputeStatus()
	if err := s.inventory.Create(ctx, &e); err != nil {
		return nil, err
	}
	log.Info().
		Stringer("entry_id", e.ID).
		Stringer("pharmacy_id", e.PharmacyID).
		Stringer("item_id", e.ItemID).
		Int("quantity", e.Quantity).
		Msg("inventory entry created")
	s.changed(ctx, domain.StockStatusInStock, e)
	return &e, nil
}

func (s *InventoryService) GetEntry(ctx context.Context, id uuid.UUID) (*domain.InventoryEntry, error) {
	return s.inventory.GetByID(ctx, id)
}

// FindEntry returns the entry for the (pharmacy, item) pair.
func (s *InventoryService) FindEntry(ctx context.Context, pharmacyID, itemID uuid.UUID) (*domain.InventoryEntry, error) {
	return s.inventory.GetByPair(ctx, pharmacyID, itemID)
}

// ListPharmacyInventory возвращает склад аптеки; lowStockOnly оставляет только low/out-of-stock
func (s *InventoryService) ListPharmacyInventory(ctx context.Context, pharmacyID uuid.UUID, lowStockOnly bool) ([]domain.InventoryEntry, error) {
	if _, err := s.catalog.GetPharmacy(ctx, pharmacyID); err != nil {
		return nil, err
	}
	return s.inventory.List(ctx, repository.InventoryFilter{PharmacyID: &pharmacyID, LowStockOnly: lowStockOnly})
}

// AdjustEntry применяет частичное обновление и пересчитывает статус
func (s *InventoryService) AdjustEntry(ctx context.Context, id uuid.UUID, patch EntryPatch) (*domain.InventoryEntry, error) {
	if patch.Quantity != nil && (*patch.Quantity < 0 || *patch.Quantity > domain.MaxQuantity) {
		return nil, domain.ErrInvalidQuantity
	}
	if (patch.Price != nil && !domain.ValidPrice(*patch.Price)) || !validThreshold(patch.LowStockThreshold) {
		return nil, domain.ErrInvalidInput
	}
	return s.apply(ctx, func(fn repository.MutateFunc) (*domain.InventoryEntry, error) {
		return s.inventory.UpdateByID(ctx, id, fn)
	}, func(e *domain.InventoryEntry) error {
		if patch.Quantity != nil {
			e.Quantity = *patch.Quantity
		}
		if patch.Price != nil {
			e.Price = *patch.Price
		}
		if patch.LowStockThreshold != nil {
			e.LowStockThreshold = *patch.LowStockThreshold
		}
		if patch.IsAvailable != nil {
			e.IsAvailable = *patch.IsAvailable
		}
		return nil
	})
}

// Reserve атомарно списывает quantity единиц, если их хватает
func (s *InventoryService) Reserve(ctx context.Context, pharmacyID, itemID uuid.UUID, quantity int) (*domain.InventoryEntry, error) {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	return s.apply(ctx, func(fn repository.MutateFunc) (*domain.InventoryEntry, error) {
		return s.inventory.UpdateByPair(ctx, pharmacyID, itemID, fn)
	}, func(e *domain.InventoryEntry) error {
		if e.Quantity < quantity {
			return &domain.InsufficientStockError{ItemID: itemID, Requested: quantity, Available: e.Quantity}
		}
		e.Quantity -= quantity
		return nil
	})
}

// Release возвращает ранее зарезервированные единицы. Only undoes a prior Reserve.
func (s *InventoryService) Release(ctx context.Context, pharmacyID, itemID uuid.UUID, quantity int) (*domain.InventoryEntry, error) {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	return s.apply(ctx, func(fn repository.MutateFunc) (*domain.InventoryEntry, error) {
		return s.inventory.UpdateByPair(ctx, pharmacyID, itemID, fn)
	}, func(e *domain.InventoryEntry) error {
		if quantity > domain.MaxQuantity-e.Quantity {
			return domain.ErrInvalidQuantity
		}
		e.Quantity += quantity
		return nil
	})
}

// RemoveEntry удаляет запись безусловно, даже если на неё ссылаются заказы
func (s *InventoryService) RemoveEntry(ctx context.Context, id uuid.UUID) error {
	if err := s.inventory.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Stringer("entry_id", id).Msg("inventory entry removed")
	onCommit(ctx, s.notifyListeners)
	return nil
}

// apply runs change atomically through update and recomputes the stock status before persistence.
func (s *InventoryService) apply(
	ctx context.Context,
	update func(repository.MutateFunc) (*domain.InventoryEntry, error),
	change repository.MutateFunc,
) (*domain.InventoryEntry, error) {
	var before domain.StockStatus
	e, err := update(func(e *domain.InventoryEntry) error {
		before = e.StockStatus
		if err := change(e); err != nil {
			return err
		}
		e.RecomputeStatus()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, before, *e)
	return e, nil
}

func validThreshold(v *int) bool {
	return v == nil || (*v >= 0 && *v <= domain.MaxQuantity)
}

// changed schedules listeners and the low stock alert for after commit.
func (s *InventoryService) changed(ctx context.Context, before domain.StockStatus, e domain.InventoryEntry) {
	onCommit(ctx, func(ctx context.Context) {
		s.notifyListeners(ctx)
		s.notifyStockLevel(ctx, before, &e)
	})
}

func (s *InventoryService) notifyListeners(ctx context.Context) {
	for _, fn := range s.listeners {
		fn(ctx)
	}
}

func (s *InventoryService) notifyStockLevel(ctx context.Context, before domain.StockStatus, e *domain.InventoryEntry) {
	if e.StockStatus == before || !e.StockStatus.Degraded() {
		return
	}
	log.Warn().
		Stringer("entry_id", e.ID).
		Stringer("pharmacy_id", e.PharmacyID).
		Stringer("item_id", e.ItemID).
		Int("quantity", e.Quantity).
		Str("stock_status", string(e.StockStatus)).
		Msg("stock level degraded")
	publish(ctx, s.events, domain.StockLevelChanged{
		EntryID:    e.ID,
		PharmacyID: e.PharmacyID,
		ItemID:     e.ItemID,
		Quantity:   e.Quantity,
		Threshold:  e.LowStockThreshold,
		From:       before,
		To:         e.StockStatus,
		At:         s.now(),
	})
}
