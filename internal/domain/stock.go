package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// StockStatus производный статус остатка
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in-stock"
	StockStatusLowStock   StockStatus = "low-stock"
	StockStatusOutOfStock StockStatus = "out-of-stock"
)

// DefaultLowStockThreshold порог "мало на складе" по умолчанию
const DefaultLowStockThreshold = 10

// MaxQuantity largest quantity or threshold a ledger row can hold
const MaxQuantity = math.MaxInt32

// prices are stored with two decimal places below 10^10
var maxPrice = decimal.New(1, 10)

// ValidPrice reports whether p can be stored without rounding.
func ValidPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThan(maxPrice) && p.Equal(p.Truncate(2))
}

// DeriveStockStatus is the only place the stock status rule lives.
func DeriveStockStatus(quantity, lowStockThreshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity < lowStockThreshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// Rank orders statuses from best to worst availability.
func (s StockStatus) Rank() int {
	switch s {
	case StockStatusInStock:
		return 0
	case StockStatusLowStock:
		return 1
	default:
		return 2
	}
}

// Degraded reports whether the status warrants a low stock alert.
func (s StockStatus) Degraded() bool {
	return s == StockStatusLowStock || s == StockStatusOutOfStock
}
