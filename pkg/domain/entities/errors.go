package entities

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the inventory engine. Callers match these with
// errors.Is; structured variants below carry detail and unwrap to them.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("resource not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConflict               = errors.New("concurrent modification detected")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCapacityExceeded       = errors.New("warehouse capacity exceeded")
	ErrInternalInconsistency  = errors.New("internal inventory inconsistency")
)

// ValidationError reports malformed input; no mutation was attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError reports a request exceeding available units.
type InsufficientStockError struct {
	Requested Quantity
	Available Quantity
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StateTransitionError reports an operation attempted from a terminal or
// incompatible state.
type StateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// CapacityError reports a receive that would push a warehouse past its
// capacity ceiling.
type CapacityError struct {
	WarehouseID WarehouseID
	Capacity    Quantity
	Used        Quantity
	Requested   Quantity
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("warehouse %s capacity exceeded: %d/%d used, %d requested", e.WarehouseID, e.Used, e.Capacity, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }
