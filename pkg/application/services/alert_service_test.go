package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/domain/entities"
)

func TestAlertSummaryLevels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWarehouse(t, "W001", 1000)

	// Healthy, warning band and sold-out cars, plus one soft-deleted.
	f.seedCar(t, "C0001", 30000, 20, 5, 10)
	f.seedStock(t, "W001", "C0001", 20)
	f.seedCar(t, "C0002", 30000, 6, 5, 10)
	f.seedStock(t, "W001", "C0002", 6)
	f.seedCar(t, "C0003", 30000, 0, 5, 10)
	f.seedCar(t, "C0004", 30000, 0, 5, 10)
	require.NoError(t, f.cars.SoftDelete(ctx, "C0004"))

	summary, err := f.alerts.Alerts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.CriticalCount)
	require.Equal(t, 1, summary.WarningCount)
	require.Len(t, summary.Alerts, 2)

	for _, alert := range summary.Alerts {
		require.NotEqual(t, entities.AlertOk, alert.Level)
		require.Equal(t, entities.Quantity(10), alert.SuggestedReorder)
	}
}

func TestAlertEvaluateCountsReservedUnits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedWarehouse(t, "W001", 1000)
	f.seedCar(t, "C0001", 30000, 20, 5, 10)
	f.seedStock(t, "W001", "C0001", 20)

	require.NoError(t, f.ledger.Reserve(ctx, "W001", "C0001", 4))

	alert, err := f.alerts.Evaluate(ctx, "C0001")
	require.NoError(t, err)
	require.Equal(t, entities.AlertOk, alert.Level)
	require.Equal(t, entities.Quantity(4), alert.ReservedStock)
	require.Equal(t, entities.Quantity(16), alert.AvailableStock)

	_, err = f.alerts.Evaluate(ctx, "C9999")
	require.ErrorIs(t, err, entities.ErrNotFound)
}
