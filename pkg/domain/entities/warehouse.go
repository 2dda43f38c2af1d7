package entities

import (
	"fmt"
	"strings"
	"time"
)

// WarehouseID identifies a warehouse ("W"-prefixed, length >= 4)
type WarehouseID string

// NewWarehouseID validates and creates a WarehouseID
func NewWarehouseID(id string) (WarehouseID, error) {
	if !strings.HasPrefix(id, "W") || len(id) < 4 {
		return "", &ValidationError{Field: "warehouse_id", Reason: fmt.Sprintf("invalid warehouse id format: %q", id)}
	}
	return WarehouseID(id), nil
}

// Warehouse represents a physical storage site with a unit capacity ceiling.
// CapacityUsed never exceeds CapacityTotal.
type Warehouse struct {
	ID            WarehouseID
	Name          string
	Location      string
	CapacityTotal Quantity
	CapacityUsed  Quantity
	Active        bool
	CreatedAt     time.Time
}

// NewWarehouse creates a validated, active Warehouse
func NewWarehouse(id WarehouseID, name, location string, capacityTotal Quantity) (*Warehouse, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "name cannot be empty"}
	}
	if capacityTotal <= 0 {
		return nil, &ValidationError{Field: "capacity_total", Reason: fmt.Sprintf("capacity must be positive, got %d", capacityTotal)}
	}

	return &Warehouse{
		ID:            id,
		Name:          name,
		Location:      location,
		CapacityTotal: capacityTotal,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// FreeCapacity returns the number of units the warehouse can still hold
func (w *Warehouse) FreeCapacity() Quantity {
	return w.CapacityTotal - w.CapacityUsed
}
