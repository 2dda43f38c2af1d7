package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/domain/entities"
)

func TestLedgerReserveRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCar(t, "C0001", 30000, 10, 2, 5)
	f.seedWarehouse(t, "W001", 100)
	f.seedStock(t, "W001", "C0001", 10)

	require.NoError(t, f.ledger.Reserve(ctx, "W001", "C0001", 4))

	loc := f.stockAt(t, "W001", "C0001")
	require.Equal(t, entities.Quantity(10), loc.Quantity)
	require.Equal(t, entities.Quantity(4), loc.ReservedQuantity)
	require.Equal(t, entities.Quantity(6), loc.Available())

	err := f.ledger.Reserve(ctx, "W001", "C0001", 7)
	require.ErrorIs(t, err, entities.ErrInsufficientStock)
	var insufficientErr *entities.InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	require.Equal(t, entities.Quantity(6), insufficientErr.Available)

	require.NoError(t, f.ledger.Release(ctx, "W001", "C0001", 4))
	require.Equal(t, entities.Quantity(0), f.stockAt(t, "W001", "C0001").ReservedQuantity)

	err = f.ledger.Release(ctx, "W001", "C0001", 1)
	require.ErrorIs(t, err, entities.ErrInternalInconsistency)
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCar(t, "C0001", 30000, 10, 2, 5)
	f.seedWarehouse(t, "W001", 100)
	f.seedStock(t, "W001", "C0001", 10)

	require.NoError(t, f.ledger.Reserve(ctx, "W001", "C0001", 3))
	require.NoError(t, f.ledger.Commit(ctx, "W001", "C0001", 3))

	loc := f.stockAt(t, "W001", "C0001")
	require.Equal(t, entities.Quantity(7), loc.Quantity)
	require.Equal(t, entities.Quantity(0), loc.ReservedQuantity)

	require.Equal(t, entities.Quantity(7), f.carByID(t, "C0001").QuantityInStock)

	warehouse, err := f.warehouses.Find(ctx, "W001")
	require.NoError(t, err)
	require.Equal(t, entities.Quantity(7), warehouse.CapacityUsed)

	err = f.ledger.Commit(ctx, "W001", "C0001", 1)
	require.ErrorIs(t, err, entities.ErrInternalInconsistency)
}

func TestLedgerReceive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCar(t, "C0001", 30000, 0, 2, 5)
	f.seedWarehouse(t, "W001", 5)

	require.NoError(t, f.ledger.Receive(ctx, "W001", "C0001", 4))

	loc := f.stockAt(t, "W001", "C0001")
	require.Equal(t, entities.Quantity(4), loc.Quantity)
	require.Equal(t, entities.Quantity(4), f.carByID(t, "C0001").QuantityInStock)

	t.Run("ceiling enforced with no partial effect", func(t *testing.T) {
		err := f.ledger.Receive(ctx, "W001", "C0001", 2)
		require.ErrorIs(t, err, entities.ErrCapacityExceeded)

		require.Equal(t, entities.Quantity(4), f.stockAt(t, "W001", "C0001").Quantity)
		warehouse, werr := f.warehouses.Find(ctx, "W001")
		require.NoError(t, werr)
		require.Equal(t, entities.Quantity(4), warehouse.CapacityUsed)
	})

	t.Run("unknown car leaves no trace", func(t *testing.T) {
		err := f.ledger.Receive(ctx, "W001", "C9999", 1)
		require.ErrorIs(t, err, entities.ErrNotFound)

		// Neither an orphan ledger row nor a capacity claim may
		// survive the failed receive.
		_, gerr := f.stocks.Get(ctx, "W001", "C9999")
		require.ErrorIs(t, gerr, entities.ErrNotFound)
		warehouse, werr := f.warehouses.Find(ctx, "W001")
		require.NoError(t, werr)
		require.Equal(t, entities.Quantity(4), warehouse.CapacityUsed)
	})
}

// Concurrent holders race for the same row; no interleaving may
// oversell, and every accepted hold must be visible on the ledger.
func TestLedgerConcurrentReserves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCar(t, "C0001", 30000, 10, 2, 5)
	f.seedWarehouse(t, "W001", 100)
	f.seedStock(t, "W001", "C0001", 10)

	const contenders = 20
	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.ledger.Reserve(ctx, "W001", "C0001", 1)
		}()
	}
	wg.Wait()
	close(results)

	var accepted int
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, entities.ErrInsufficientStock):
		case errors.Is(err, entities.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	loc := f.stockAt(t, "W001", "C0001")
	require.Equal(t, entities.Quantity(accepted), loc.ReservedQuantity)
	require.LessOrEqual(t, loc.ReservedQuantity, loc.Quantity)
	require.NoError(t, loc.CheckInvariant())
}
