// Package sqlite provides the durable repository implementations backed
// by a single SQLite database file.
package sqlite

import (
	"strings"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cars (
	id                 TEXT PRIMARY KEY,
	brand              TEXT NOT NULL,
	model              TEXT NOT NULL,
	year               INTEGER NOT NULL,
	color              TEXT NOT NULL DEFAULT '',
	engine             INTEGER NOT NULL,
	transmission       TEXT NOT NULL DEFAULT '',
	price              TEXT NOT NULL,
	quantity_in_stock  INTEGER NOT NULL,
	reorder_point      INTEGER NOT NULL,
	economic_order_qty INTEGER NOT NULL,
	status             INTEGER NOT NULL,
	version            INTEGER NOT NULL,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	deleted_at         INTEGER
);

CREATE TABLE IF NOT EXISTS warehouses (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	location       TEXT NOT NULL DEFAULT '',
	capacity_total INTEGER NOT NULL,
	capacity_used  INTEGER NOT NULL DEFAULT 0,
	active         INTEGER NOT NULL DEFAULT 1,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_locations (
	warehouse_id      TEXT NOT NULL,
	car_id            TEXT NOT NULL,
	quantity          INTEGER NOT NULL,
	reserved_quantity INTEGER NOT NULL DEFAULT 0,
	version           INTEGER NOT NULL,
	last_updated      INTEGER NOT NULL,
	PRIMARY KEY (warehouse_id, car_id)
);

CREATE TABLE IF NOT EXISTS reservations (
	id           TEXT PRIMARY KEY,
	car_id       TEXT NOT NULL,
	warehouse_id TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	reserved_by  TEXT NOT NULL,
	expires_at   INTEGER NOT NULL,
	status       INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reservations_status_expiry ON reservations (status, expires_at);

CREATE TABLE IF NOT EXISTS transfer_orders (
	id             TEXT PRIMARY KEY,
	from_warehouse TEXT NOT NULL,
	to_warehouse   TEXT NOT NULL,
	car_id         TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	status         INTEGER NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	requested_at   INTEGER NOT NULL,
	completed_at   INTEGER
);

CREATE TABLE IF NOT EXISTS job_executions (
	id              TEXT PRIMARY KEY,
	job_type        TEXT NOT NULL,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER,
	status          INTEGER NOT NULL,
	items_processed INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_job_executions_type_started ON job_executions (job_type, started_at);

CREATE TABLE IF NOT EXISTS metrics_snapshots (
	hour                  INTEGER PRIMARY KEY,
	total_cars            INTEGER NOT NULL,
	total_value           TEXT NOT NULL,
	active_reservations   INTEGER NOT NULL,
	reserved_units        INTEGER NOT NULL,
	low_stock_cars        INTEGER NOT NULL,
	available_stock_value TEXT NOT NULL,
	computed_at           INTEGER NOT NULL
);
`

// Open connects to the database file at path, applies the pragmas the
// engine needs and ensures the schema exists. The DDL is idempotent so
// reopening an existing file is safe.
func Open(path string) (*sqlx.DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "opening database %s", path)
	}
	// The driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "applying schema")
	}
	return db, nil
}

// isUniqueViolation reports whether err is a primary-key or unique-index
// violation. The driver exposes no typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
