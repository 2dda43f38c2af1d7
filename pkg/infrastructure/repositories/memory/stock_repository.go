package memory

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

type stockKey struct {
	warehouseID entities.WarehouseID
	carID       entities.CarID
}

// StockRepository is an in-memory ledger-row store.
type StockRepository struct {
	mu     sync.RWMutex
	stocks map[stockKey]*entities.StockLocation
}

var _ repositories.StockRepository = (*StockRepository)(nil)

// NewStockRepository creates an empty in-memory stock repository
func NewStockRepository() *StockRepository {
	return &StockRepository{stocks: make(map[stockKey]*entities.StockLocation)}
}

// Get returns the ledger row for (warehouseID, carID)
func (r *StockRepository) Get(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID) (*entities.StockLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, exists := r.stocks[stockKey{warehouseID, carID}]
	if !exists {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "stock %s/%s", warehouseID, carID)
	}
	clone := *loc
	return &clone, nil
}

// ListByCar returns every ledger row holding the given car
func (r *StockRepository) ListByCar(ctx context.Context, carID entities.CarID) ([]*entities.StockLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.StockLocation
	for key, loc := range r.stocks {
		if key.carID != carID {
			continue
		}
		clone := *loc
		out = append(out, &clone)
	}
	return out, nil
}

// Put inserts a new ledger row
func (r *StockRepository) Put(ctx context.Context, loc *entities.StockLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stockKey{loc.WarehouseID, loc.CarID}
	if _, exists := r.stocks[key]; exists {
		return pkgerrors.Wrapf(entities.ErrConflict, "stock %s/%s already exists", loc.WarehouseID, loc.CarID)
	}
	clone := *loc
	r.stocks[key] = &clone
	return nil
}

// UpdateWithVersion writes loc if the stored version matches
func (r *StockRepository) UpdateWithVersion(ctx context.Context, loc *entities.StockLocation, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stockKey{loc.WarehouseID, loc.CarID}
	current, exists := r.stocks[key]
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "stock %s/%s", loc.WarehouseID, loc.CarID)
	}
	if current.Version != expectedVersion {
		return pkgerrors.Wrapf(entities.ErrConflict, "stock %s/%s: version %d, expected %d", loc.WarehouseID, loc.CarID, current.Version, expectedVersion)
	}

	clone := *loc
	clone.Version = expectedVersion + 1
	clone.LastUpdated = time.Now().UTC()
	r.stocks[key] = &clone
	return nil
}

// WarehouseRepository is an in-memory entities.Warehouse store.
type WarehouseRepository struct {
	mu         sync.RWMutex
	warehouses map[entities.WarehouseID]*entities.Warehouse
}

var _ repositories.WarehouseRepository = (*WarehouseRepository)(nil)

// NewWarehouseRepository creates an empty in-memory warehouse repository
func NewWarehouseRepository() *WarehouseRepository {
	return &WarehouseRepository{warehouses: make(map[entities.WarehouseID]*entities.Warehouse)}
}

// Create adds a new warehouse
func (r *WarehouseRepository) Create(ctx context.Context, warehouse *entities.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.warehouses[warehouse.ID]; exists {
		return pkgerrors.Wrapf(entities.ErrConflict, "warehouse %s already exists", warehouse.ID)
	}
	clone := *warehouse
	r.warehouses[warehouse.ID] = &clone
	return nil
}

// Find returns the warehouse with the given id
func (r *WarehouseRepository) Find(ctx context.Context, id entities.WarehouseID) (*entities.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	warehouse, exists := r.warehouses[id]
	if !exists {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "warehouse %s", id)
	}
	clone := *warehouse
	return &clone, nil
}

// ListActive returns all active warehouses
func (r *WarehouseRepository) ListActive(ctx context.Context) ([]*entities.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Warehouse
	for _, warehouse := range r.warehouses {
		if !warehouse.Active {
			continue
		}
		clone := *warehouse
		out = append(out, &clone)
	}
	return out, nil
}

// AdjustCapacityUsed applies delta under the lock, enforcing the ceiling
func (r *WarehouseRepository) AdjustCapacityUsed(ctx context.Context, id entities.WarehouseID, delta entities.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	warehouse, exists := r.warehouses[id]
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "warehouse %s", id)
	}

	next := warehouse.CapacityUsed + delta
	if next < 0 || next > warehouse.CapacityTotal {
		return pkgerrors.WithStack(&entities.CapacityError{
			WarehouseID: id,
			Capacity:    warehouse.CapacityTotal,
			Used:        warehouse.CapacityUsed,
			Requested:   delta,
		})
	}
	warehouse.CapacityUsed = next
	return nil
}
