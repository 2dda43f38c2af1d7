package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

type jobRow struct {
	ID             string        `db:"id"`
	JobType        string        `db:"job_type"`
	StartedAt      int64         `db:"started_at"`
	FinishedAt     sql.NullInt64 `db:"finished_at"`
	Status         int           `db:"status"`
	ItemsProcessed int           `db:"items_processed"`
	Error          string        `db:"error"`
}

func (r jobRow) toEntity() (*entities.JobExecution, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "corrupt job id %q", r.ID)
	}
	job := &entities.JobExecution{
		ID:             id,
		Type:           entities.JobType(r.JobType),
		StartedAt:      time.UnixMilli(r.StartedAt).UTC(),
		Status:         entities.JobStatus(r.Status),
		ItemsProcessed: r.ItemsProcessed,
		Error:          r.Error,
	}
	if r.FinishedAt.Valid {
		finished := time.UnixMilli(r.FinishedAt.Int64).UTC()
		job.FinishedAt = &finished
	}
	return job, nil
}

// JobExecutionRepository stores the job audit trail in the
// job_executions table.
type JobExecutionRepository struct {
	db *sqlx.DB
}

var _ repositories.JobExecutionRepository = (*JobExecutionRepository)(nil)

// NewJobExecutionRepository creates a sqlite-backed job repository
func NewJobExecutionRepository(db *sqlx.DB) *JobExecutionRepository {
	return &JobExecutionRepository{db: db}
}

// Append records the start of a run
func (r *JobExecutionRepository) Append(ctx context.Context, job *entities.JobExecution) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_executions (id, job_type, started_at, finished_at, status, items_processed, error)
		VALUES (?, ?, ?, NULL, ?, ?, ?)`,
		job.ID.String(), string(job.Type), job.StartedAt.UnixMilli(),
		int(job.Status), job.ItemsProcessed, job.Error)
	if err != nil {
		return pkgerrors.Wrapf(err, "inserting job execution %s", job.ID)
	}
	return nil
}

// Close records the outcome of a previously appended run
func (r *JobExecutionRepository) Close(ctx context.Context, job *entities.JobExecution) error {
	var finishedAt sql.NullInt64
	if job.FinishedAt != nil {
		finishedAt = sql.NullInt64{Int64: job.FinishedAt.UnixMilli(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE job_executions SET finished_at = ?, status = ?, items_processed = ?, error = ?
		WHERE id = ?`,
		finishedAt, int(job.Status), job.ItemsProcessed, job.Error, job.ID.String())
	if err != nil {
		return pkgerrors.Wrapf(err, "closing job execution %s", job.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Wrap(err, "reading rows affected")
	}
	if affected == 0 {
		return pkgerrors.Wrapf(entities.ErrNotFound, "job execution %s", job.ID)
	}
	return nil
}

// ListRecent returns up to limit runs of jobType, newest first
func (r *JobExecutionRepository) ListRecent(ctx context.Context, jobType entities.JobType, limit int) ([]*entities.JobExecution, error) {
	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM job_executions WHERE job_type = ?
		ORDER BY started_at DESC LIMIT ?`,
		string(jobType), limit); err != nil {
		return nil, pkgerrors.Wrapf(err, "listing %s executions", jobType)
	}

	out := make([]*entities.JobExecution, 0, len(rows))
	for _, row := range rows {
		job, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

type metricsRow struct {
	Hour                int64  `db:"hour"`
	TotalCars           int64  `db:"total_cars"`
	TotalValue          string `db:"total_value"`
	ActiveReservations  int64  `db:"active_reservations"`
	ReservedUnits       int64  `db:"reserved_units"`
	LowStockCars        int64  `db:"low_stock_cars"`
	AvailableStockValue string `db:"available_stock_value"`
	ComputedAt          int64  `db:"computed_at"`
}

func (r metricsRow) toEntity() (*entities.MetricsSnapshot, error) {
	totalValue, err := decimal.NewFromString(r.TotalValue)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "corrupt total value")
	}
	availableValue, err := decimal.NewFromString(r.AvailableStockValue)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "corrupt available stock value")
	}
	return &entities.MetricsSnapshot{
		Hour:                time.UnixMilli(r.Hour).UTC(),
		TotalCars:           r.TotalCars,
		TotalValue:          totalValue,
		ActiveReservations:  r.ActiveReservations,
		ReservedUnits:       entities.Quantity(r.ReservedUnits),
		LowStockCars:        r.LowStockCars,
		AvailableStockValue: availableValue,
		ComputedAt:          time.UnixMilli(r.ComputedAt).UTC(),
	}, nil
}

// MetricsRepository stores hourly snapshots in the metrics_snapshots
// table, keyed by the truncated hour.
type MetricsRepository struct {
	db *sqlx.DB
}

var _ repositories.MetricsRepository = (*MetricsRepository)(nil)

// NewMetricsRepository creates a sqlite-backed metrics repository
func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Upsert stores the snapshot, overwriting any existing row for its hour
func (r *MetricsRepository) Upsert(ctx context.Context, snapshot *entities.MetricsSnapshot) error {
	hour := entities.TruncateHour(snapshot.Hour)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metrics_snapshots (hour, total_cars, total_value, active_reservations, reserved_units, low_stock_cars, available_stock_value, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hour) DO UPDATE SET
			total_cars = excluded.total_cars,
			total_value = excluded.total_value,
			active_reservations = excluded.active_reservations,
			reserved_units = excluded.reserved_units,
			low_stock_cars = excluded.low_stock_cars,
			available_stock_value = excluded.available_stock_value,
			computed_at = excluded.computed_at`,
		hour.UnixMilli(), snapshot.TotalCars, snapshot.TotalValue.String(),
		snapshot.ActiveReservations, int64(snapshot.ReservedUnits), snapshot.LowStockCars,
		snapshot.AvailableStockValue.String(), snapshot.ComputedAt.UnixMilli())
	if err != nil {
		return pkgerrors.Wrapf(err, "upserting metrics for %s", hour.Format(time.RFC3339))
	}
	return nil
}

// Get returns the snapshot for the given hour
func (r *MetricsRepository) Get(ctx context.Context, hour time.Time) (*entities.MetricsSnapshot, error) {
	var row metricsRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM metrics_snapshots WHERE hour = ?`,
		entities.TruncateHour(hour).UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "metrics snapshot for %s", hour.Format(time.RFC3339))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "finding metrics snapshot")
	}
	return row.toEntity()
}
