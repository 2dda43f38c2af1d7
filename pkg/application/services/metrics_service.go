package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// MetricsAggregator computes hourly inventory rollups. Each collection
// upserts the snapshot for its hour, so repeated runs within the same
// hour refine the row rather than duplicate it.
type MetricsAggregator struct {
	cars         repositories.CarRepository
	stocks       repositories.StockRepository
	reservations repositories.ReservationRepository
	metrics      repositories.MetricsRepository
	log          zerolog.Logger
	now          func() time.Time
}

// NewMetricsAggregator creates a metrics aggregator
func NewMetricsAggregator(cars repositories.CarRepository, stocks repositories.StockRepository, reservations repositories.ReservationRepository, metrics repositories.MetricsRepository, log zerolog.Logger) *MetricsAggregator {
	return &MetricsAggregator{
		cars:         cars,
		stocks:       stocks,
		reservations: reservations,
		metrics:      metrics,
		log:          log.With().Str("component", "metrics_aggregator").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Collect computes the snapshot for the current hour and upserts it.
// The totals are assembled from independent reads without a global
// lock, so a snapshot taken during heavy write traffic is approximate.
func (a *MetricsAggregator) Collect(ctx context.Context) (*entities.MetricsSnapshot, error) {
	cars, err := a.cars.List(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &entities.MetricsSnapshot{
		Hour:       entities.TruncateHour(a.now()),
		ComputedAt: a.now(),
	}

	for _, car := range cars {
		snapshot.TotalCars++

		locations, err := a.stocks.ListByCar(ctx, car.ID)
		if err != nil {
			return nil, err
		}
		var stock, reserved entities.Quantity
		for _, loc := range locations {
			stock += loc.Quantity
			reserved += loc.ReservedQuantity
		}

		snapshot.TotalValue = snapshot.TotalValue.Add(car.Price.Mul(decimal.NewFromInt(int64(stock))))
		snapshot.AvailableStockValue = snapshot.AvailableStockValue.Add(car.Price.Mul(decimal.NewFromInt(int64(stock - reserved))))

		if entities.EvaluateStockHealth(car, reserved).Level != entities.AlertOk {
			snapshot.LowStockCars++
		}
	}

	activeCount, reservedUnits, err := a.reservations.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.ActiveReservations = activeCount
	snapshot.ReservedUnits = reservedUnits

	if err := a.metrics.Upsert(ctx, snapshot); err != nil {
		return nil, err
	}

	a.log.Info().
		Time("hour", snapshot.Hour).
		Int64("total_cars", snapshot.TotalCars).
		Str("total_value", snapshot.TotalValue.String()).
		Int64("active_reservations", snapshot.ActiveReservations).
		Int64("low_stock_cars", snapshot.LowStockCars).
		Msg("metrics collected")
	return snapshot, nil
}

// Snapshot returns the stored rollup for the hour containing t.
func (a *MetricsAggregator) Snapshot(ctx context.Context, t time.Time) (*entities.MetricsSnapshot, error) {
	return a.metrics.Get(ctx, entities.TruncateHour(t))
}
