package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

type reservationRow struct {
	ID          string `db:"id"`
	CarID       string `db:"car_id"`
	WarehouseID string `db:"warehouse_id"`
	Quantity    int64  `db:"quantity"`
	ReservedBy  string `db:"reserved_by"`
	ExpiresAt   int64  `db:"expires_at"`
	Status      int    `db:"status"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r reservationRow) toEntity() (*entities.Reservation, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt reservation id %q", r.ID)
	}
	return &entities.Reservation{
		ID:          id,
		CarID:       entities.CarID(r.CarID),
		WarehouseID: entities.WarehouseID(r.WarehouseID),
		Quantity:    entities.Quantity(r.Quantity),
		ReservedBy:  r.ReservedBy,
		ExpiresAt:   time.UnixMilli(r.ExpiresAt).UTC(),
		Status:      entities.ReservationStatus(r.Status),
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}

// ReservationRepository stores reservations in the reservations table.
type ReservationRepository struct {
	db *sqlx.DB
}

var _ repositories.ReservationRepository = (*ReservationRepository)(nil)

// NewReservationRepository creates a sqlite-backed reservation repository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new reservation
func (r *ReservationRepository) Create(ctx context.Context, reservation *entities.Reservation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (id, car_id, warehouse_id, quantity, reserved_by, expires_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID.String(), string(reservation.CarID), string(reservation.WarehouseID),
		int64(reservation.Quantity), reservation.ReservedBy, reservation.ExpiresAt.UnixMilli(),
		int(reservation.Status), reservation.CreatedAt.UnixMilli(), reservation.UpdatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(entities.ErrConflict, "reservation %s already exists", reservation.ID)
		}
		return pkgerrors.Wrapf(err, "inserting reservation %s", reservation.ID)
	}
	return nil
}

// Find returns the reservation with the given id
func (r *ReservationRepository) Find(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	var row reservationRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM reservations WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding reservation %s", id)
	}
	return row.toEntity()
}

// Update overwrites the stored reservation
func (r *ReservationRepository) Update(ctx context.Context, reservation *entities.Reservation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reservations SET quantity = ?, reserved_by = ?, expires_at = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		int64(reservation.Quantity), reservation.ReservedBy, reservation.ExpiresAt.UnixMilli(),
		int(reservation.Status), reservation.UpdatedAt.UnixMilli(), reservation.ID.String())
	if err != nil {
		return pkgerrors.Wrapf(err, "updating reservation %s", reservation.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected == 0 {
		return pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", reservation.ID)
	}
	return nil
}

// UpdateStatus moves the reservation from one status to the next only
// if the stored status still matches from
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.ReservationStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		int(next), time.Now().UTC().UnixMilli(), id.String(), int(from))
	if err != nil {
		return pkgerrors.Wrapf(err, "transitioning reservation %s", id)
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
		`SELECT COUNT(*) > 0 FROM reservations WHERE id = ?`, id.String()); err != nil {
		return pkgerrors.Wrapf(err, "checking reservation %s", id)
	}
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", id)
	}
	return pkgerrors.Wrapf(entities.ErrConflict, "reservation %s is no longer %s", id, from)
}

// ListExpired returns Pending reservations with a deadline before asOf
func (r *ReservationRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*entities.Reservation, error) {
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM reservations
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at`,
		int(entities.ReservationPending), asOf.UnixMilli()); err != nil {
		return nil, pkgerrors.Wrap(err, "listing expired reservations")
	}

	out := make([]*entities.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, reservation)
	}
	return out, nil
}

// CountActive returns the Pending reservation count and their total units
func (r *ReservationRepository) CountActive(ctx context.Context) (int64, entities.Quantity, error) {
	var agg struct {
		Count int64 `db:"count"`
		Units int64 `db:"units"`
	}
	err := r.db.GetContext(ctx, &agg, `
		SELECT COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS units
		FROM reservations WHERE status = ?`,
		int(entities.ReservationPending))
	if err != nil {
		return 0, 0, pkgerrors.Wrap(err, "counting active reservations")
	}
	return agg.Count, entities.Quantity(agg.Units), nil
}

type transferRow struct {
	ID            string        `db:"id"`
	FromWarehouse string        `db:"from_warehouse"`
	ToWarehouse   string        `db:"to_warehouse"`
	CarID         string        `db:"car_id"`
	Quantity      int64         `db:"quantity"`
	Status        int           `db:"status"`
	FailureReason string        `db:"failure_reason"`
	RequestedAt   int64         `db:"requested_at"`
	CompletedAt   sql.NullInt64 `db:"completed_at"`
}

func (r transferRow) toEntity() (*entities.TransferOrder, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt transfer id %q", r.ID)
	}
	order := &entities.TransferOrder{
		ID:            id,
		FromWarehouse: entities.WarehouseID(r.FromWarehouse),
		ToWarehouse:   entities.WarehouseID(r.ToWarehouse),
		CarID:         entities.CarID(r.CarID),
		Quantity:      entities.Quantity(r.Quantity),
		Status:        entities.TransferStatus(r.Status),
		FailureReason: r.FailureReason,
		RequestedAt:   time.UnixMilli(r.RequestedAt).UTC(),
	}
	if r.CompletedAt.Valid {
		completed := time.UnixMilli(r.CompletedAt.Int64).UTC()
		order.CompletedAt = &completed
	}
	return order, nil
}

// TransferRepository stores transfer orders in the transfer_orders table.
type TransferRepository struct {
	db *sqlx.DB
}

var _ repositories.TransferRepository = (*TransferRepository)(nil)

// NewTransferRepository creates a sqlite-backed transfer repository
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new transfer order
func (r *TransferRepository) Create(ctx context.Context, order *entities.TransferOrder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_orders (id, from_warehouse, to_warehouse, car_id, quantity, status, failure_reason, requested_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		order.ID.String(), string(order.FromWarehouse), string(order.ToWarehouse),
		string(order.CarID), int64(order.Quantity), int(order.Status),
		order.FailureReason, order.RequestedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.Wrapf(entities.ErrConflict, "transfer %s already exists", order.ID)
		}
		return pkgerrors.Wrapf(err, "inserting transfer %s", order.ID)
	}
	return nil
}

// Find returns the transfer order with the given id
func (r *TransferRepository) Find(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	var row transferRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM transfer_orders WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", id)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "finding transfer %s", id)
	}
	return row.toEntity()
}

// Update overwrites the stored transfer order
func (r *TransferRepository) Update(ctx context.Context, order *entities.TransferOrder) error {
	var completedAt sql.NullInt64
	if order.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: order.CompletedAt.UnixMilli(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transfer_orders SET status = ?, failure_reason = ?, completed_at = ?
		WHERE id = ?`,
		int(order.Status), order.FailureReason, completedAt, order.ID.String())
	if err != nil {
		return pkgerrors.Wrapf(err, "updating transfer %s", order.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected == 0 {
		return pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", order.ID)
	}
	return nil
}

// UpdateStatus moves the order from one status to the next only if the
// stored status still matches from
func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.TransferStatus) error {
	var completedAt sql.NullInt64
	if next.Terminal() {
		completedAt = sql.NullInt64{Int64: time.Now().UTC().UnixMilli(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transfer_orders SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		int(next), completedAt, id.String(), int(from))
	if err != nil {
		return pkgerrors.Wrapf(err, "transitioning transfer %s", id)
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
		`SELECT COUNT(*) > 0 FROM transfer_orders WHERE id = ?`, id.String()); err != nil {
		return pkgerrors.Wrapf(err, "checking transfer %s", id)
	}
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", id)
	}
	return pkgerrors.Wrapf(entities.ErrConflict, "transfer %s is no longer %s", id, from)
}
