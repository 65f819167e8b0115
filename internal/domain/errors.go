package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrDuplicateEntry    = errors.New("inventory entry already exists for pharmacy and item")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStorage           = errors.New("storage failure")
)

// NotFoundError отсутствующая сущность (аптека, товар, заказ, запись склада)
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFound(resource string, id fmt.Stringer) error {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

// ItemNotFoundError позиция заказа не продаётся в выбранной аптеке
type ItemNotFoundError struct {
	ItemID uuid.UUID
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s is not stocked by the pharmacy", e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

// InsufficientStockError сообщает, сколько единиц реально доступно
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidTransitionError недопустимая смена статуса заказа
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// StorageError сбой хранилища; не является нарушением бизнес-правил
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsBusinessError reports whether err is a caller-facing rule violation rather than a fault.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrItemNotFound, ErrDuplicateEntry, ErrInsufficientStock,
		ErrInvalidTransition, ErrInvalidQuantity, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
