package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
	"github.com/Eddy0415/PharmaMap-sub000/internal/repository"
)

// OrderService реализует жизненный цикл заказа: создание с резервом, смена статуса, отмена с возвратом на склад
type OrderService struct {
	catalog        repository.CatalogRepository
	ledger         *InventoryService
	orders         repository.OrderRepository
	tx             repository.TxManager
	events         EventPublisher
	now            func() time.Time
	newOrderNumber func() string
}

func NewOrderService(
	catalog repository.CatalogRepository,
	ledger *InventoryService,
	orders repository.OrderRepository,
	tx repository.TxManager,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		catalog:        catalog,
		ledger:         ledger,
		orders:         orders,
		tx:             tx,
		events:         events,
		now:            func() time.Time { return time.Now().UTC() },
		newOrderNumber: func() string { return "ORD-" + ulid.Make().String() },
	}
}

// OrderLineInput запрошенная позиция
type OrderLineInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// CreateOrderInput параметры нового заказа
type CreateOrderInput struct {
	CustomerID uuid.UUID
	PharmacyID uuid.UUID
	Items      []OrderLineInput
	Notes      string
}

type reservation struct {
	itemID   uuid.UUID
	quantity int
}

// CreateOrder резервирует каждую позицию; при любой ошибке уже сделанные резервы снимаются
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.CustomerID == uuid.Nil || in.PharmacyID == uuid.Nil || len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	for _, it := range in.Items {
		if it.ItemID == uuid.Nil {
			return nil, domain.ErrInvalidInput
		}
		if it.Quantity <= 0 || it.Quantity > domain.MaxQuantity {
			return nil, domain.ErrInvalidQuantity
		}
	}

	var created *domain.Order
	txCtx, effects := withAfterCommit(ctx)
	err := s.tx.WithTransaction(txCtx, func(ctx context.Context) error {
		items := make([]domain.Item, len(in.Items))
		for i, line := range in.Items {
			it, err := s.lookupLine(ctx, in.PharmacyID, line.ItemID)
			if err != nil {
				return err
			}
			items[i] = *it
		}

		// reserve in item id order so concurrent orders lock shared entries in the same sequence
		sequence := make([]int, len(in.Items))
		for i := range sequence {
			sequence[i] = i
		}
		sort.SliceStable(sequence, func(a, b int) bool {
			return itemIDLess(in.Items[sequence[a]].ItemID, in.Items[sequence[b]].ItemID)
		})

		prices := make([]decimal.Decimal, len(in.Items))
		reserved := make([]reservation, 0, len(in.Items))
		for _, idx := range sequence {
			line := in.Items[idx]
			e, err := s.ledger.Reserve(ctx, in.PharmacyID, line.ItemID, line.Quantity)
			if err != nil {
				s.compensate(ctx, in.PharmacyID, reserved)
				if errors.Is(err, domain.ErrNotFound) {
					return &domain.ItemNotFoundError{ItemID: line.ItemID}
				}
				return err
			}
			reserved = append(reserved, reservation{itemID: line.ItemID, quantity: line.Quantity})
			prices[idx] = e.Price
		}

		o := &domain.Order{
			OrderNumber: s.newOrderNumber(),
			CustomerID:  in.CustomerID,
			PharmacyID:  in.PharmacyID,
			Status:      domain.OrderStatusPending,
			Notes:       in.Notes,
			Items:       make([]domain.OrderItem, 0, len(in.Items)),
		}
		for i, line := range in.Items {
			o.Items = append(o.Items, domain.NewOrderItem(items[i], line.Quantity, prices[i]))
		}
		o.CalculateTotal()
		if err := s.orders.Create(ctx, o); err != nil {
			s.compensate(ctx, in.PharmacyID, reserved)
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		log.Warn().Err(err).
			Stringer("customer_id", in.CustomerID).
			Stringer("pharmacy_id", in.PharmacyID).
			Msg("order rejected")
		return nil, err
	}
	effects.run(ctx)

	log.Info().
		Stringer("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Str("total_amount", created.TotalAmount.String()).
		Int("lines", len(created.Items)).
		Msg("order created")
	publish(ctx, s.events, domain.OrderPlaced{
		OrderID:     created.ID,
		OrderNumber: created.OrderNumber,
		CustomerID:  created.CustomerID,
		PharmacyID:  created.PharmacyID,
		TotalAmount: created.TotalAmount,
		At:          created.CreatedAt,
	})
	return created, nil
}

// lookupLine checks that the pharmacy stocks the item and returns the catalog record.
func (s *OrderService) lookupLine(ctx context.Context, pharmacyID, itemID uuid.UUID) (*domain.Item, error) {
	if _, err := s.ledger.FindEntry(ctx, pharmacyID, itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ItemNotFoundError{ItemID: itemID}
		}
		return nil, err
	}
	it, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ItemNotFoundError{ItemID: itemID}
		}
		return nil, err
	}
	return it, nil
}

// compensate снимает резервы, сделанные до ошибки
func (s *OrderService) compensate(ctx context.Context, pharmacyID uuid.UUID, reserved []reservation) {
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if _, err := s.ledger.Release(ctx, pharmacyID, r.itemID, r.quantity); err != nil {
			log.Error().Err(err).
				Stringer("pharmacy_id", pharmacyID).
				Stringer("item_id", r.itemID).
				Int("quantity", r.quantity).
				Msg("failed to roll back reservation")
		}
	}
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ErrInvalidInput
	}
	return s.orders.List(ctx, f)
}

// SetStatus переводит заказ в новый статус.
// Moving to cancelled releases every line exactly once: the release is claimed
// by setting StockReleasedAt in the same atomic update as the status change.
func (s *OrderService) SetStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus, reason string) (*domain.Order, error) {
	if id == uuid.Nil || !next.Valid() {
		return nil, domain.ErrInvalidInput
	}

	var (
		updated *domain.Order
		prev    domain.OrderStatus
		claimed bool
	)
	txCtx, effects := withAfterCommit(ctx)
	err := s.tx.WithTransaction(txCtx, func(ctx context.Context) error {
		o, err := s.orders.UpdateByID(ctx, id, func(o *domain.Order) error {
			prev = o.Status
			c, err := o.TransitionTo(next, s.now())
			if err != nil {
				return err
			}
			claimed = c
			if next == domain.OrderStatusCancelled && reason != "" {
				o.CancellationReason = reason
			}
			return nil
		})
		if err != nil {
			return err
		}
		if claimed {
			if err := s.releaseItems(ctx, o); err != nil {
				return err
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	effects.run(ctx)

	log.Info().
		Stringer("order_id", updated.ID).
		Str("from", string(prev)).
		Str("to", string(updated.Status)).
		Bool("stock_released", claimed).
		Msg("order status changed")
	publish(ctx, s.events, domain.OrderStatusChanged{
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		From:          prev,
		To:            updated.Status,
		StockReleased: claimed,
		At:            updated.UpdatedAt,
	})
	return updated, nil
}

// CancelOrder shortcut for SetStatus(cancelled).
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	return s.SetStatus(ctx, id, domain.OrderStatusCancelled, reason)
}

// releaseItems locks entries in the same item id order CreateOrder reserves them in.
func (s *OrderService) releaseItems(ctx context.Context, o *domain.Order) error {
	lines := append([]domain.OrderItem(nil), o.Items...)
	sort.SliceStable(lines, func(a, b int) bool {
		return itemIDLess(lines[a].ItemID, lines[b].ItemID)
	})
	for _, it := range lines {
		if _, err := s.ledger.Release(ctx, o.PharmacyID, it.ItemID, it.Quantity); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// entry was removed by the pharmacy after the order was placed
				log.Warn().
					Stringer("order_id", o.ID).
					Stringer("item_id", it.ItemID).
					Int("quantity", it.Quantity).
					Msg("inventory entry gone, cannot restore stock")
				continue
			}
			return err
		}
	}
	return nil
}

func itemIDLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
