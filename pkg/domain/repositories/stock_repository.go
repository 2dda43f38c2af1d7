package repositories

import (
	"context"

	"github.com/carstock/carstock/pkg/domain/entities"
)

// StockRepository provides access to the per-(warehouse, car) ledger rows.
type StockRepository interface {
	Get(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID) (*entities.StockLocation, error)
	ListByCar(ctx context.Context, carID entities.CarID) ([]*entities.StockLocation, error)
	// Put inserts a new ledger row; an existing row for the same key
	// yields entities.ErrConflict.
	Put(ctx context.Context, loc *entities.StockLocation) error
	// UpdateWithVersion writes loc conditioned on the stored version
	// matching expectedVersion, bumping the version by one. A mismatch
	// yields entities.ErrConflict and leaves the row unchanged.
	UpdateWithVersion(ctx context.Context, loc *entities.StockLocation, expectedVersion int64) error
}

// WarehouseRepository provides access to warehouse records and their
// capacity accounting.
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *entities.Warehouse) error
	Find(ctx context.Context, id entities.WarehouseID) (*entities.Warehouse, error)
	ListActive(ctx context.Context) ([]*entities.Warehouse, error)
	// AdjustCapacityUsed applies delta to capacity_used atomically,
	// failing with entities.ErrCapacityExceeded when the result would
	// leave the 0..capacity_total range.
	AdjustCapacityUsed(ctx context.Context, id entities.WarehouseID, delta entities.Quantity) error
}
