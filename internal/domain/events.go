package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType routing key of a domain event
type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventStockLevelChanged  EventType = "inventory.stock_level_changed"
)

// Event доменное событие для внешних подписчиков
type Event interface {
	Type() EventType
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type OrderPlaced struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  uuid.UUID       `json:"customerId"`
	PharmacyID  uuid.UUID       `json:"pharmacyId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	At          time.Time       `json:"at"`
}

func (e OrderPlaced) Type() EventType        { return EventOrderPlaced }
func (e OrderPlaced) AggregateID() uuid.UUID { return e.OrderID }
func (e OrderPlaced) OccurredAt() time.Time  { return e.At }

type OrderStatusChanged struct {
	OrderID       uuid.UUID   `json:"orderId"`
	OrderNumber   string      `json:"orderNumber"`
	From          OrderStatus `json:"from"`
	To            OrderStatus `json:"to"`
	StockReleased bool        `json:"stockReleased"`
	At            time.Time   `json:"at"`
}

func (e OrderStatusChanged) Type() EventType        { return EventOrderStatusChanged }
func (e OrderStatusChanged) AggregateID() uuid.UUID { return e.OrderID }
func (e OrderStatusChanged) OccurredAt() time.Time  { return e.At }

// StockLevelChanged публикуется, когда запись уходит в low-stock или out-of-stock
type StockLevelChanged struct {
	EntryID    uuid.UUID   `json:"entryId"`
	PharmacyID uuid.UUID   `json:"pharmacyId"`
	ItemID     uuid.UUID   `json:"itemId"`
	Quantity   int         `json:"quantity"`
	Threshold  int         `json:"threshold"`
	From       StockStatus `json:"from"`
	To         StockStatus `json:"to"`
	At         time.Time   `json:"at"`
}

func (e StockLevelChanged) Type() EventType        { return EventStockLevelChanged }
func (e StockLevelChanged) AggregateID() uuid.UUID { return e.EntryID }
func (e StockLevelChanged) OccurredAt() time.Time  { return e.At }
