package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusConfirmed: true,
		OrderStatusCancelled: true,
	},
	OrderStatusConfirmed: {
		OrderStatusReady:     true,
		OrderStatusCancelled: true,
	},
	OrderStatusReady: {
		OrderStatusCompleted: true,
		OrderStatusCancelled: true,
	},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowedTransitions[s][next]
}

// NewOrderItem builds a line with its subtotal.
func NewOrderItem(item Item, quantity int, price decimal.Decimal) OrderItem {
	return OrderItem{
		ItemID:       item.ID,
		ItemName:     item.Name,
		Quantity:     quantity,
		PriceAtOrder: price,
		Subtotal:     price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// CalculateTotal sums line subtotals into TotalAmount.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	o.TotalAmount = total
}

// TransitionTo moves the order to next and stamps the matching timestamp.
// When next is cancelled and stock has not been released yet, StockReleasedAt
// is set and releaseClaimed is true: the caller must then release every line.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) (releaseClaimed bool, err error) {
	if !o.Status.CanTransitionTo(next) {
		return false, &InvalidTransitionError{From: o.Status, To: next}
	}
	ts := at
	switch next {
	case OrderStatusConfirmed:
		o.ConfirmedAt = &ts
	case OrderStatusReady:
		o.ReadyAt = &ts
	case OrderStatusCompleted:
		o.CompletedAt = &ts
	case OrderStatusCancelled:
		o.CancelledAt = &ts
		if o.StockReleasedAt == nil {
			o.StockReleasedAt = &ts
			releaseClaimed = true
		}
	}
	o.Status = next
	o.UpdatedAt = at
	return releaseClaimed, nil
}
