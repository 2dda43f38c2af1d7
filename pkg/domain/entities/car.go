package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CarID is the inventory identifier for a car model ("C"-prefixed, length >= 5)
type CarID string

// NewCarID validates and creates a CarID
func NewCarID(id string) (CarID, error) {
	if !strings.HasPrefix(id, "C") || len(id) < 5 {
		return "", &ValidationError{Field: "car_id", Reason: fmt.Sprintf("invalid car id format: %q", id)}
	}
	return CarID(id), nil
}

// CarStatus represents the lifecycle status of a car
type CarStatus int

const (
	CarAvailable CarStatus = iota
	CarSold
	CarReserved
	CarMaintenance
)

func (s CarStatus) String() string {
	switch s {
	case CarAvailable:
		return "Available"
	case CarSold:
		return "Sold"
	case CarReserved:
		return "Reserved"
	case CarMaintenance:
		return "Maintenance"
	default:
		return "Unknown"
	}
}

// EngineType represents the engine category of a car
type EngineType int

const (
	EngineElectric EngineType = iota
	EngineHybrid
	EngineGasoline
	EngineDiesel
)

func (e EngineType) String() string {
	switch e {
	case EngineElectric:
		return "Electric"
	case EngineHybrid:
		return "Hybrid"
	case EngineGasoline:
		return "Gasoline"
	case EngineDiesel:
		return "Diesel"
	default:
		return "Unknown"
	}
}

// Car represents an automobile model tracked by the inventory engine.
// Version increases by exactly one per accepted mutation and is the
// conflict-detection token for concurrent writers.
type Car struct {
	ID               CarID
	Brand            string
	Model            string
	Year             int
	Color            string
	Engine           EngineType
	Transmission     string
	Price            decimal.Decimal
	QuantityInStock  Quantity
	ReorderPoint     Quantity
	EconomicOrderQty Quantity
	Status           CarStatus
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// NewCar creates a validated Car with an initial version of 1
func NewCar(id CarID, brand, model string, year int, engine EngineType, price decimal.Decimal, quantity, reorderPoint, eoq Quantity) (*Car, error) {
	if brand == "" {
		return nil, &ValidationError{Field: "brand", Reason: "brand cannot be empty"}
	}
	if model == "" {
		return nil, &ValidationError{Field: "model", Reason: "model cannot be empty"}
	}
	if year < 1886 || year > 2030 {
		return nil, &ValidationError{Field: "year", Reason: fmt.Sprintf("year out of range: %d", year)}
	}
	if !price.IsPositive() {
		return nil, &ValidationError{Field: "price", Reason: "price must be strictly positive"}
	}
	if quantity < 0 {
		return nil, &ValidationError{Field: "quantity_in_stock", Reason: fmt.Sprintf("quantity cannot be negative, got %d", quantity)}
	}
	if reorderPoint < 0 {
		return nil, &ValidationError{Field: "reorder_point", Reason: fmt.Sprintf("reorder point cannot be negative, got %d", reorderPoint)}
	}
	if eoq <= 0 {
		return nil, &ValidationError{Field: "economic_order_qty", Reason: fmt.Sprintf("economic order quantity must be positive, got %d", eoq)}
	}

	now := time.Now().UTC()
	return &Car{
		ID:               id,
		Brand:            brand,
		Model:            model,
		Year:             year,
		Engine:           engine,
		Price:            price,
		QuantityInStock:  quantity,
		ReorderPoint:     reorderPoint,
		EconomicOrderQty: eoq,
		Status:           CarAvailable,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Deleted reports whether the car has been soft-deleted
func (c *Car) Deleted() bool {
	return c.DeletedAt != nil
}
