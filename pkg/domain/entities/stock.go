package entities

import (
	"time"
)

// Quantity represents an integer count of discrete vehicle units
type Quantity int64

// StockLocation is the per-(warehouse, car) ledger row: units physically
// present, units held by pending reservations or in-flight transfers, and
// the version used for compare-and-set writes.
type StockLocation struct {
	WarehouseID      WarehouseID
	CarID            CarID
	Quantity         Quantity
	ReservedQuantity Quantity
	Version          int64
	LastUpdated      time.Time
}

// NewStockLocation creates a ledger row at version 1
func NewStockLocation(warehouseID WarehouseID, carID CarID, quantity Quantity) (*StockLocation, error) {
	if quantity < 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "quantity cannot be negative"}
	}
	return &StockLocation{
		WarehouseID: warehouseID,
		CarID:       carID,
		Quantity:    quantity,
		Version:     1,
		LastUpdated: time.Now().UTC(),
	}, nil
}

// Available returns the units not held by any reservation or transfer
func (l *StockLocation) Available() Quantity {
	return l.Quantity - l.ReservedQuantity
}

// CheckInvariant validates 0 <= reserved <= quantity
func (l *StockLocation) CheckInvariant() error {
	if l.ReservedQuantity < 0 || l.ReservedQuantity > l.Quantity {
		return ErrInternalInconsistency
	}
	return nil
}
