package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/application/services"
	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/infrastructure/repositories/memory"
)

func TestExpirationJobSweep(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	cars := memory.NewCarRepository()
	warehouses := memory.NewWarehouseRepository()
	stocks := memory.NewStockRepository()
	reservations := memory.NewReservationRepository()

	ledger := services.NewStockLedger(stocks, warehouses, cars, log)
	manager := services.NewReservationManager(ledger, reservations, cars, stocks, 15*time.Minute, log)

	car, err := entities.NewCar("C0001", "Aurora", "GT", 2024, entities.EngineElectric, decimal.NewFromInt(30000), 10, 2, 5)
	require.NoError(t, err)
	require.NoError(t, cars.Create(ctx, car))
	warehouse, err := entities.NewWarehouse("W001", "North Lot", "Hamburg", 100)
	require.NoError(t, err)
	require.NoError(t, warehouses.Create(ctx, warehouse))
	loc, err := entities.NewStockLocation("W001", "C0001", 10)
	require.NoError(t, err)
	require.NoError(t, stocks.Put(ctx, loc))
	require.NoError(t, warehouses.AdjustCapacityUsed(ctx, "W001", 10))

	deadline := time.Now().UTC().Add(time.Minute)
	overdue1, err := manager.Create(ctx, "C0001", 2, "alice", deadline)
	require.NoError(t, err)
	overdue2, err := manager.Create(ctx, "C0001", 3, "bob", deadline)
	require.NoError(t, err)
	confirmed, err := manager.Create(ctx, "C0001", 1, "carol", deadline)
	require.NoError(t, err)
	_, err = manager.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	job := NewExpirationJob(manager, reservations, log)
	// Sweep after every deadline has passed.
	job.now = func() time.Time { return deadline.Add(time.Minute) }

	expired, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, expired)

	for _, tt := range []struct {
		id   uuid.UUID
		want entities.ReservationStatus
	}{
		{overdue1.ID, entities.ReservationExpired},
		{overdue2.ID, entities.ReservationExpired},
		{confirmed.ID, entities.ReservationConfirmed},
	} {
		stored, err := manager.Find(ctx, tt.id)
		require.NoError(t, err)
		require.Equal(t, tt.want, stored.Status)
	}

	// Only the Confirmed hold remains on the ledger.
	got, err := stocks.Get(ctx, "W001", "C0001")
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(1), got.ReservedQuantity)

	// The sweep is idempotent across runs.
	expiredAgain, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, expiredAgain)
}

func TestMetricsJobRollsUp(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	cars := memory.NewCarRepository()
	stocks := memory.NewStockRepository()
	reservations := memory.NewReservationRepository()
	metrics := memory.NewMetricsRepository()

	aggregator := services.NewMetricsAggregator(cars, stocks, reservations, metrics, log)

	car, err := entities.NewCar("C0001", "Aurora", "GT", 2024, entities.EngineElectric, decimal.NewFromInt(30000), 5, 2, 5)
	require.NoError(t, err)
	require.NoError(t, cars.Create(ctx, car))

	job := NewMetricsJob(aggregator)
	processed, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	stored, err := metrics.Get(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.TotalCars)
}
