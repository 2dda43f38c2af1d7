package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// AlertSummary is a point-in-time report over the whole catalog.
type AlertSummary struct {
	CriticalCount int
	WarningCount  int
	Alerts        []entities.StockAlert
}

// AlertEngine evaluates reorder health for every car in the catalog.
type AlertEngine struct {
	cars   repositories.CarRepository
	stocks repositories.StockRepository
	log    zerolog.Logger
}

// NewAlertEngine creates an alert engine
func NewAlertEngine(cars repositories.CarRepository, stocks repositories.StockRepository, log zerolog.Logger) *AlertEngine {
	return &AlertEngine{
		cars:   cars,
		stocks: stocks,
		log:    log.With().Str("component", "alert_engine").Logger(),
	}
}

// Evaluate returns the alert for a single car.
func (e *AlertEngine) Evaluate(ctx context.Context, carID entities.CarID) (*entities.StockAlert, error) {
	car, err := e.cars.Find(ctx, carID)
	if err != nil {
		return nil, err
	}
	reserved, err := e.reservedUnits(ctx, carID)
	if err != nil {
		return nil, err
	}
	alert := entities.EvaluateStockHealth(car, reserved)
	return &alert, nil
}

// Alerts scans the catalog and returns every non-Ok alert plus level
// counts. Soft-deleted cars are excluded by the repository.
func (e *AlertEngine) Alerts(ctx context.Context) (*AlertSummary, error) {
	cars, err := e.cars.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &AlertSummary{}
	for _, car := range cars {
		reserved, err := e.reservedUnits(ctx, car.ID)
		if err != nil {
			return nil, err
		}
		alert := entities.EvaluateStockHealth(car, reserved)
		switch alert.Level {
		case entities.AlertCritical:
			summary.CriticalCount++
		case entities.AlertWarning:
			summary.WarningCount++
		default:
			continue
		}
		summary.Alerts = append(summary.Alerts, alert)
	}

	if summary.CriticalCount > 0 {
		e.log.Warn().
			Int("critical", summary.CriticalCount).
			Int("warning", summary.WarningCount).
			Msg("cars out of stock")
	}
	return summary, nil
}

func (e *AlertEngine) reservedUnits(ctx context.Context, carID entities.CarID) (entities.Quantity, error) {
	locations, err := e.stocks.ListByCar(ctx, carID)
	if err != nil {
		return 0, err
	}
	var reserved entities.Quantity
	for _, loc := range locations {
		reserved += loc.ReservedQuantity
	}
	return reserved, nil
}
