package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/infrastructure/repositories/memory"
)

// fixture wires every service over shared in-memory repositories.
type fixture struct {
	cars         *memory.CarRepository
	warehouses   *memory.WarehouseRepository
	stocks       *memory.StockRepository
	reservations *memory.ReservationRepository
	transfers    *memory.TransferRepository
	metrics      *memory.MetricsRepository

	ledger       *StockLedger
	manager      *ReservationManager
	orchestrator *TransferOrchestrator
	alerts       *AlertEngine
	aggregator   *MetricsAggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cars:         memory.NewCarRepository(),
		warehouses:   memory.NewWarehouseRepository(),
		stocks:       memory.NewStockRepository(),
		reservations: memory.NewReservationRepository(),
		transfers:    memory.NewTransferRepository(),
		metrics:      memory.NewMetricsRepository(),
	}
	log := zerolog.Nop()
	f.ledger = NewStockLedger(f.stocks, f.warehouses, f.cars, log)
	f.manager = NewReservationManager(f.ledger, f.reservations, f.cars, f.stocks, 15*time.Minute, log)
	f.orchestrator = NewTransferOrchestrator(f.ledger, f.transfers, f.warehouses, f.cars, log)
	f.alerts = NewAlertEngine(f.cars, f.stocks, log)
	f.aggregator = NewMetricsAggregator(f.cars, f.stocks, f.reservations, f.metrics, log)
	return f
}

// seedCar registers a car whose aggregate stock matches the sum of the
// per-warehouse quantities that seedStock will place.
func (f *fixture) seedCar(t *testing.T, id entities.CarID, price int64, total, reorder, eoq entities.Quantity) {
	t.Helper()

	car, err := entities.NewCar(id, "Aurora", "GT", 2024, entities.EngineElectric, decimal.NewFromInt(price), total, reorder, eoq)
	require.NoError(t, err)
	require.NoError(t, f.cars.Create(context.Background(), car))
}

func (f *fixture) seedWarehouse(t *testing.T, id entities.WarehouseID, capacity entities.Quantity) {
	t.Helper()

	warehouse, err := entities.NewWarehouse(id, string(id)+" lot", "Hamburg", capacity)
	require.NoError(t, err)
	require.NoError(t, f.warehouses.Create(context.Background(), warehouse))
}

// seedStock places qty units at (warehouseID, carID) and claims the
// matching warehouse capacity.
func (f *fixture) seedStock(t *testing.T, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) {
	t.Helper()

	loc, err := entities.NewStockLocation(warehouseID, carID, qty)
	require.NoError(t, err)
	require.NoError(t, f.stocks.Put(context.Background(), loc))
	require.NoError(t, f.warehouses.AdjustCapacityUsed(context.Background(), warehouseID, qty))
}

func (f *fixture) stockAt(t *testing.T, warehouseID entities.WarehouseID, carID entities.CarID) *entities.StockLocation {
	t.Helper()

	loc, err := f.stocks.Get(context.Background(), warehouseID, carID)
	require.NoError(t, err)
	return loc
}

func (f *fixture) carByID(t *testing.T, id entities.CarID) *entities.Car {
	t.Helper()

	car, err := f.cars.Find(context.Background(), id)
	require.NoError(t, err)
	return car
}

func futureDeadline() time.Time {
	return time.Now().UTC().Add(time.Hour)
}
