package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStockStatus(t *testing.T) {
	tests := []struct {
		quantity, threshold int
		want                StockStatus
	}{
		{0, 10, StockStatusOutOfStock},
		{1, 10, StockStatusLowStock},
		{9, 10, StockStatusLowStock},
		{10, 10, StockStatusInStock},
		{500, 10, StockStatusInStock},
		{3, 0, StockStatusInStock},
		{0, 0, StockStatusOutOfStock},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("q=%d/t=%d", tt.quantity, tt.threshold), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStockStatus(tt.quantity, tt.threshold))
		})
	}
}

func TestStockStatusRank(t *testing.T) {
	assert.Less(t, StockStatusInStock.Rank(), StockStatusLowStock.Rank())
	assert.Less(t, StockStatusLowStock.Rank(), StockStatusOutOfStock.Rank())
}

func TestValidPrice(t *testing.T) {
	tests := []struct {
		price string
		want  bool
	}{
		{"0", true},
		{"3.5", true},
		{"1.500", true},
		{"1.005", false},
		{"-0.01", false},
		{"9999999999.99", true},
		{"10000000000", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPrice(decimal.RequireFromString(tt.price)), tt.price)
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusConfirmed}:   true,
		{OrderStatusPending, OrderStatusCancelled}:   true,
		{OrderStatusConfirmed, OrderStatusReady}:     true,
		{OrderStatusConfirmed, OrderStatusCancelled}: true,
		{OrderStatusReady, OrderStatusCompleted}:     true,
		{OrderStatusReady, OrderStatusCancelled}:     true,
	}
	all := []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]OrderStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatus("shipped").Valid())
}

func TestOrder_TransitionTo(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	o := Order{Status: OrderStatusPending}

	claimed, err := o.TransitionTo(OrderStatusConfirmed, now)
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, o.ConfirmedAt)
	assert.Equal(t, now, *o.ConfirmedAt)

	claimed, err = o.TransitionTo(OrderStatusCancelled, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NotNil(t, o.StockReleasedAt)

	_, err = o.TransitionTo(OrderStatusCancelled, now.Add(2*time.Minute))
	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OrderStatusCancelled, te.From)
	assert.Equal(t, OrderStatusCancelled, te.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrder_CalculateTotal(t *testing.T) {
	a := Item{ID: uuid.New(), Name: "Paracetamol"}
	b := Item{ID: uuid.New(), Name: "Ibuprofen"}
	o := Order{Items: []OrderItem{
		NewOrderItem(a, 3, decimal.RequireFromString("2.50")),
		NewOrderItem(b, 2, decimal.RequireFromString("4.10")),
	}}
	o.CalculateTotal()

	assert.True(t, o.Items[0].Subtotal.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("15.70")), o.TotalAmount.String())
}

func TestOrder_CloneDoesNotShareItems(t *testing.T) {
	now := time.Now()
	o := Order{Items: []OrderItem{{Quantity: 1}}, CancelledAt: &now}
	cp := o.Clone()
	cp.Items[0].Quantity = 5
	*cp.CancelledAt = now.Add(time.Hour)

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, now, *o.CancelledAt)
}

func TestErrors_Matching(t *testing.T) {
	id := uuid.New()
	wrapped := fmt.Errorf("create order: %w", &InsufficientStockError{ItemID: id, Requested: 3, Available: 2})

	var ise *InsufficientStockError
	require.ErrorAs(t, wrapped, &ise)
	assert.Equal(t, 2, ise.Available)
	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.True(t, IsBusinessError(wrapped))

	storage := &StorageError{Op: "inventory.reserve", Err: errors.New("conn reset")}
	assert.ErrorIs(t, storage, ErrStorage)
	assert.False(t, IsBusinessError(storage))

	assert.ErrorIs(t, NewNotFound("order", id), ErrNotFound)
	assert.ErrorIs(t, &ItemNotFoundError{ItemID: id}, ErrItemNotFound)
}
