package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address адрес аптеки
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	Region string `json:"region,omitempty"`
}

// Pharmacy аптека из внешнего справочника
type Pharmacy struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Address      Address   `json:"address"`
	Phone        string    `json:"phone,omitempty"`
	WorkingHours string    `json:"workingHours,omitempty"`
	IsOpen       bool      `json:"isOpen"`
}

// Item позиция каталога (лекарство)
type Item struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	Category             string          `json:"category"`
	Dosage               string          `json:"dosage,omitempty"`
	Form                 string          `json:"form,omitempty"`
	RequiresPrescription bool            `json:"requiresPrescription"`
	BasePrice            decimal.Decimal `json:"basePrice"`
	SearchCount          int64           `json:"searchCount"`
}

// InventoryEntry складская запись для пары (аптека, товар)
type InventoryEntry struct {
	ID                uuid.UUID       `json:"id"`
	PharmacyID        uuid.UUID       `json:"pharmacyId"`
	ItemID            uuid.UUID       `json:"itemId"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	IsAvailable       bool            `json:"isAvailable"`
	StockStatus       StockStatus     `json:"stockStatus"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// RecomputeStatus пересчитывает производный статус по текущему количеству.
func (e *InventoryEntry) RecomputeStatus() {
	e.StockStatus = DeriveStockStatus(e.Quantity, e.LowStockThreshold)
}

// OrderItem позиция в заказе, цена зафиксирована на момент создания
type OrderItem struct {
	ItemID       uuid.UUID       `json:"itemId"`
	ItemName     string          `json:"itemName"`
	Quantity     int             `json:"quantity"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Order сущность заказа
type Order struct {
	ID                 uuid.UUID       `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	CustomerID         uuid.UUID       `json:"customerId"`
	PharmacyID         uuid.UUID       `json:"pharmacyId"`
	Items              []OrderItem     `json:"items"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	Status             OrderStatus     `json:"status"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	ConfirmedAt        *time.Time      `json:"confirmedAt,omitempty"`
	ReadyAt            *time.Time      `json:"readyAt,omitempty"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	StockReleasedAt    *time.Time      `json:"stockReleasedAt,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the items slice with storage.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]OrderItem(nil), o.Items...)
	for _, ts := range []**time.Time{&cp.ConfirmedAt, &cp.ReadyAt, &cp.CompletedAt, &cp.CancelledAt, &cp.StockReleasedAt} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	return cp
}
