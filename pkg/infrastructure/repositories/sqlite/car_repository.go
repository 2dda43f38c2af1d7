package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

type carRow struct {
	ID               string        `db:"id"`
	Brand            string        `db:"brand"`
	Model            string        `db:"model"`
	Year             int           `db:"year"`
	Color            string        `db:"color"`
	Engine           int           `db:"engine"`
	Transmission     string        `db:"transmission"`
	Price            string        `db:"price"`
	QuantityInStock  int64         `db:"quantity_in_stock"`
	ReorderPoint     int64         `db:"reorder_point"`
	EconomicOrderQty int64         `db:"economic_order_qty"`
	Status           int           `db:"status"`
	Version          int64         `db:"version"`
	CreatedAt        int64         `db:"created_at"`
	UpdatedAt        int64         `db:"updated_at"`
	DeletedAt        sql.NullInt64 `db:"deleted_at"`
}

func newCarRow(car *entities.Car) carRow {
	row := carRow{
		ID:               string(car.ID),
		Brand:            car.Brand,
		Model:            car.Model,
		Year:             car.Year,
		Color:            car.Color,
		Engine:           int(car.Engine),
		Transmission:     car.Transmission,
		Price:            car.Price.String(),
		QuantityInStock:  int64(car.QuantityInStock),
		ReorderPoint:     int64(car.ReorderPoint),
		EconomicOrderQty: int64(car.EconomicOrderQty),
		Status:           int(car.Status),
		Version:          car.Version,
		CreatedAt:        car.CreatedAt.UnixMilli(),
		UpdatedAt:        car.UpdatedAt.UnixMilli(),
	}
	if car.DeletedAt != nil {
		row.DeletedAt = sql.NullInt64{Int64: car.DeletedAt.UnixMilli(), Valid: true}
	}
	return row
}

func (r carRow) toEntity() (*entities.Car, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt price for car %s", r.ID)
	}
	car := &entities.Car{
		ID:               entities.CarID(r.ID),
		Brand:            r.Brand,
		Model:            r.Model,
		Year:             r.Year,
		Color:            r.Color,
		Engine:           entities.EngineType(r.Engine),
		Transmission:     r.Transmission,
		Price:            price,
		QuantityInStock:  entities.Quantity(r.QuantityInStock),
		ReorderPoint:     entities.Quantity(r.ReorderPoint),
		EconomicOrderQty: entities.Quantity(r.EconomicOrderQty),
		Status:           entities.CarStatus(r.Status),
		Version:          r.Version,
		CreatedAt:        time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:        time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.DeletedAt.Valid {
		deleted := time.UnixMilli(r.DeletedAt.Int64).UTC()
		car.DeletedAt = &deleted
	}
	return car, nil
}

// CarRepository stores cars in the cars table.
type CarRepository struct {
	db *sqlx.DB
}

var _ repositories.CarRepository = (*CarRepository)(nil)

// NewCarRepository creates a sqlite-backed car repository
func NewCarRepository(db *sqlx.DB) *CarRepository {
	return &CarRepository{db: db}
}

// Create inserts a new car
func (r *CarRepository) Create(ctx context.Context, car *entities.Car) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO cars (id, brand, model, year, color, engine, transmission, price,
			quantity_in_stock, reorder_point, economic_order_qty, status, version,
			created_at, updated_at, deleted_at)
		VALUES (:id, :brand, :model, :year, :color, :engine, :transmission, :price,
			:quantity_in_stock, :reorder_point, :economic_order_qty, :status, :version,
			:created_at, :updated_at, :deleted_at)`,
		newCarRow(car))
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(entities.ErrConflict, "car %s already exists", car.ID)
		}
		return pkgerrors.Wrapf(err, "inserting car %s", car.ID)
	}
	return nil
}

// Find returns the car with the given id, excluding soft-deleted rows
func (r *CarRepository) Find(ctx context.Context, id entities.CarID) (*entities.Car, error) {
	var row carRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM cars WHERE id = ? AND deleted_at IS NULL`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "car %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding car %s", id)
	}
	return row.toEntity()
}

// List returns all non-deleted cars
func (r *CarRepository) List(ctx context.Context) ([]*entities.Car, error) {
	var rows []carRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM cars WHERE deleted_at IS NULL ORDER BY id`); err != nil {
		return nil, pkgerrors.Wrap(err, "listing cars")
	}

	out := make([]*entities.Car, 0, len(rows))
	for _, row := range rows {
		car, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, car)
	}
	return out, nil
}

// UpdateWithVersion writes car if the stored version matches
func (r *CarRepository) UpdateWithVersion(ctx context.Context, car *entities.Car, expectedVersion int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cars SET brand = ?, model = ?, year = ?, color = ?, engine = ?,
			transmission = ?, price = ?, quantity_in_stock = ?, reorder_point = ?,
			economic_order_qty = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND version = ?`,
		car.Brand, car.Model, car.Year, car.Color, int(car.Engine),
		car.Transmission, car.Price.String(), int64(car.QuantityInStock), int64(car.ReorderPoint),
		int64(car.EconomicOrderQty), int(car.Status), time.Now().UTC().UnixMilli(),
		string(car.ID), expectedVersion)
	if err != nil {
		return pkgerrors.Wrapf(err, "updating car %s", car.ID)
	}
	return r.casOutcome(ctx, res, car.ID, expectedVersion)
}

// SoftDelete marks the car deleted
func (r *CarRepository) SoftDelete(ctx context.Context, id entities.CarID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cars SET deleted_at = ?, version = version + 1
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().UnixMilli(), string(id))
	if err != nil {
		return pkgerrors.Wrapf(err, "deleting car %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected == 0 {
		return pkgerrors.Wrapf(entities.ErrNotFound, "car %s", id)
	}
	return nil
}

// casOutcome distinguishes a version conflict from a missing row after a
// conditional update touched nothing.
func (r *CarRepository) casOutcome(ctx context.Context, res sql.Result, id entities.CarID, expectedVersion int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT COUNT(*) > 0 FROM cars WHERE id = ? AND deleted_at IS NULL`, string(id)); err != nil {
		return pkgerrors.Wrapf(err, "checking car %s", id)
	}
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "car %s", id)
	}
	return pkgerrors.Wrapf(entities.ErrConflict, "car %s: expected version %d", id, expectedVersion)
}
