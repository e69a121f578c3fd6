package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrConcurrencyConflict = errors.New("concurrent modification")

	ErrBookNotFound          = fmt.Errorf("book %w", ErrNotFound)
	ErrInventoryItemNotFound = fmt.Errorf("inventory item %w", ErrNotFound)
	ErrOrderNotFound         = fmt.Errorf("order %w", ErrNotFound)
)

// EntityType tags errors with the aggregate or value object they belong to.
type EntityType string

const (
	EntityBook          EntityType = "Book"
	EntityInventoryItem EntityType = "InventoryItem"
	EntityOrder         EntityType = "Order"
	EntityOrderLine     EntityType = "OrderLine"
)

// ValidationError reports a failed structural precondition.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a missing book, inventory item or order.
type NotFoundError struct {
	Entity EntityType
	ID     string
	kind   error
}

func NewBookNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: EntityBook, ID: id, kind: ErrBookNotFound}
}

func NewInventoryItemNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: EntityInventoryItem, ID: id, kind: ErrInventoryItemNotFound}
}

func NewOrderNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: EntityOrder, ID: id, kind: ErrOrderNotFound}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.kind == nil {
		return ErrNotFound
	}
	return e.kind
}

// InsufficientStockError carries the requested and available amounts.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ConflictError is returned by stores when the stored version no longer
// matches the version the caller read.
type ConflictError struct {
	Entity  EntityType
	ID      string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: version %d is stale", e.Entity, e.ID, e.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}
