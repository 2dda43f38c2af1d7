package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/domain/entities"
)

func TestMetricsCollect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWarehouse(t, "W001", 1000)
	f.seedCar(t, "C0001", 30000, 10, 2, 5)
	f.seedStock(t, "W001", "C0001", 10)
	f.seedCar(t, "C0002", 50000, 3, 4, 5)
	f.seedStock(t, "W001", "C0002", 3)

	_, err := f.manager.Create(ctx, "C0001", 2, "alice", futureDeadline())
	require.NoError(t, err)

	snapshot, err := f.aggregator.Collect(ctx)
	require.NoError(t, err)

	require.Equal(t, int64(2), snapshot.TotalCars)
	require.True(t, snapshot.TotalValue.Equal(decimal.NewFromInt(10*30000+3*50000)), "total value = %s", snapshot.TotalValue)
	require.True(t, snapshot.AvailableStockValue.Equal(decimal.NewFromInt(8*30000+3*50000)), "available value = %s", snapshot.AvailableStockValue)
	require.Equal(t, int64(1), snapshot.ActiveReservations)
	require.Equal(t, entities.Quantity(2), snapshot.ReservedUnits)
	require.Equal(t, int64(1), snapshot.LowStockCars)
	require.Equal(t, entities.TruncateHour(time.Now().UTC()), snapshot.Hour)
}

func TestMetricsSameHourOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWarehouse(t, "W001", 1000)
	f.seedCar(t, "C0001", 30000, 10, 2, 5)
	f.seedStock(t, "W001", "C0001", 10)

	hour := entities.TruncateHour(time.Date(2026, time.March, 4, 15, 42, 0, 0, time.UTC))
	f.aggregator.now = func() time.Time { return hour.Add(10 * time.Minute) }

	first, err := f.aggregator.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), first.ActiveReservations)

	_, err = f.manager.Create(ctx, "C0001", 3, "alice", futureDeadline())
	require.NoError(t, err)

	f.aggregator.now = func() time.Time { return hour.Add(50 * time.Minute) }
	second, err := f.aggregator.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Hour, second.Hour)

	stored, err := f.aggregator.Snapshot(ctx, hour.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.ActiveReservations)
	require.Equal(t, entities.Quantity(3), stored.ReservedUnits)

	_, err = f.aggregator.Snapshot(ctx, hour.Add(-time.Hour))
	require.ErrorIs(t, err, entities.ErrNotFound)
}
