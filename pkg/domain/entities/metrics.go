package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricsSnapshot holds aggregate ledger and reservation state rolled up
// for one hour. Keyed by the truncated hour; recomputing the same hour
// overwrites rather than duplicating.
type MetricsSnapshot struct {
	Hour                time.Time
	TotalCars           int64
	TotalValue          decimal.Decimal
	ActiveReservations  int64
	ReservedUnits       Quantity
	LowStockCars        int64
	AvailableStockValue decimal.Decimal
	ComputedAt          time.Time
}

// TruncateHour normalizes a timestamp to its snapshot key
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
