package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

type stockRow struct {
	WarehouseID      string `db:"warehouse_id"`
	CarID            string `db:"car_id"`
	Quantity         int64  `db:"quantity"`
	ReservedQuantity int64  `db:"reserved_quantity"`
	Version          int64  `db:"version"`
	LastUpdated      int64  `db:"last_updated"`
}

func (r stockRow) toEntity() *entities.StockLocation {
	return &entities.StockLocation{
		WarehouseID:      entities.WarehouseID(r.WarehouseID),
		CarID:            entities.CarID(r.CarID),
		Quantity:         entities.Quantity(r.Quantity),
		ReservedQuantity: entities.Quantity(r.ReservedQuantity),
		Version:          r.Version,
		LastUpdated:      time.UnixMilli(r.LastUpdated).UTC(),
	}
}

// StockRepository stores ledger rows in the stock_locations table.
type StockRepository struct {
	db *sqlx.DB
}

var _ repositories.StockRepository = (*StockRepository)(nil)

// NewStockRepository creates a sqlite-backed stock repository
func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Get returns the ledger row for (warehouseID, carID)
func (r *StockRepository) Get(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID) (*entities.StockLocation, error) {
	var row stockRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM stock_locations WHERE warehouse_id = ? AND car_id = ?`,
		string(warehouseID), string(carID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "stock %s/%s", warehouseID, carID)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding stock %s/%s", warehouseID, carID)
	}
	return row.toEntity(), nil
}

// ListByCar returns every ledger row holding the given car
func (r *StockRepository) ListByCar(ctx context.Context, carID entities.CarID) ([]*entities.StockLocation, error) {
	var rows []stockRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM stock_locations WHERE car_id = ? ORDER BY warehouse_id`,
		string(carID)); err != nil {
		return nil, pkgerrors.Wrapf(err, "listing stock for car %s", carID)
	}

	out := make([]*entities.StockLocation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// Put inserts a new ledger row
func (r *StockRepository) Put(ctx context.Context, loc *entities.StockLocation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_locations (warehouse_id, car_id, quantity, reserved_quantity, version, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(loc.WarehouseID), string(loc.CarID), int64(loc.Quantity),
		int64(loc.ReservedQuantity), loc.Version, loc.LastUpdated.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(entities.ErrConflict, "stock %s/%s already exists", loc.WarehouseID, loc.CarID)
		}
		return pkgerrors.Wrapf(err, "inserting stock %s/%s", loc.WarehouseID, loc.CarID)
	}
	return nil
}

// UpdateWithVersion writes loc if the stored version matches
func (r *StockRepository) UpdateWithVersion(ctx context.Context, loc *entities.StockLocation, expectedVersion int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stock_locations SET quantity = ?, reserved_quantity = ?,
			version = version + 1, last_updated = ?
		WHERE warehouse_id = ? AND car_id = ? AND version = ?`,
		int64(loc.Quantity), int64(loc.ReservedQuantity), time.Now().UTC().UnixMilli(),
		string(loc.WarehouseID), string(loc.CarID), expectedVersion)
	if err != nil {
		return pkgerrors.Wrapf(err, "updating stock %s/%s", loc.WarehouseID, loc.CarID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT COUNT(*) > 0 FROM stock_locations WHERE warehouse_id = ? AND car_id = ?`,
		string(loc.WarehouseID), string(loc.CarID)); err != nil {
		return pkgerrors.Wrapf(err, "checking stock %s/%s", loc.WarehouseID, loc.CarID)
	}
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "stock %s/%s", loc.WarehouseID, loc.CarID)
	}
	return pkgerrors.Wrapf(entities.ErrConflict, "stock %s/%s: expected version %d", loc.WarehouseID, loc.CarID, expectedVersion)
}

type warehouseRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Location      string `db:"location"`
	CapacityTotal int64  `db:"capacity_total"`
	CapacityUsed  int64  `db:"capacity_used"`
	Active        bool   `db:"active"`
	CreatedAt     int64  `db:"created_at"`
}

func (r warehouseRow) toEntity() *entities.Warehouse {
	return &entities.Warehouse{
		ID:            entities.WarehouseID(r.ID),
		Name:          r.Name,
		Location:      r.Location,
		CapacityTotal: entities.Quantity(r.CapacityTotal),
		CapacityUsed:  entities.Quantity(r.CapacityUsed),
		Active:        r.Active,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// WarehouseRepository stores warehouses in the warehouses table.
type WarehouseRepository struct {
	db *sqlx.DB
}

var _ repositories.WarehouseRepository = (*WarehouseRepository)(nil)

// NewWarehouseRepository creates a sqlite-backed warehouse repository
func NewWarehouseRepository(db *sqlx.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Create inserts a new warehouse
func (r *WarehouseRepository) Create(ctx context.Context, warehouse *entities.Warehouse) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, capacity_total, capacity_used, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(warehouse.ID), warehouse.Name, warehouse.Location,
		int64(warehouse.CapacityTotal), int64(warehouse.CapacityUsed),
		warehouse.Active, warehouse.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(entities.ErrConflict, "warehouse %s already exists", warehouse.ID)
		}
		return pkgerrors.Wrapf(err, "inserting warehouse %s", warehouse.ID)
	}
	return nil
}

// Find returns the warehouse with the given id
func (r *WarehouseRepository) Find(ctx context.Context, id entities.WarehouseID) (*entities.Warehouse, error) {
	var row warehouseRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM warehouses WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "warehouse %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding warehouse %s", id)
	}
	return row.toEntity(), nil
}

// ListActive returns all active warehouses
func (r *WarehouseRepository) ListActive(ctx context.Context) ([]*entities.Warehouse, error) {
	var rows []warehouseRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM warehouses WHERE active = 1 ORDER BY id`); err != nil {
		return nil, pkgerrors.Wrap(err, "listing warehouses")
	}

	out := make([]*entities.Warehouse, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// AdjustCapacityUsed applies delta in one statement; the WHERE clause
// enforces the 0..capacity_total range so concurrent adjustments cannot
// oversubscribe.
func (r *WarehouseRepository) AdjustCapacityUsed(ctx context.Context, id entities.WarehouseID, delta entities.Quantity) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE warehouses SET capacity_used = capacity_used + ?
		WHERE id = ? AND capacity_used + ? >= 0 AND capacity_used + ? <= capacity_total`,
		int64(delta), string(id), int64(delta), int64(delta))
	if err != nil {
		return pkgerrors.Wrapf(err, "adjusting capacity for warehouse %s", id)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected > 0 {
		return nil
	}

	warehouse, err := r.Find(ctx, id)
	if err != nil {
		return err
	}
	return pkgerrors.WithStack(&entities.CapacityError{
		WarehouseID: id,
		Capacity:    warehouse.CapacityTotal,
		Used:        warehouse.CapacityUsed,
		Requested:   delta,
	})
}
