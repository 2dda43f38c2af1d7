package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

const (
	// defaultMaxRetries bounds the CAS retry loop: read version,
	// conditional write, retry on mismatch, then surface a conflict.
	defaultMaxRetries  = 5
	defaultBackoffBase = 10 * time.Millisecond
)

// StockLedger owns every low-level mutation of the per-(warehouse, car)
// quantity/reserved-quantity rows. All writers go through its
// compare-and-set primitives; no other component mutates ledger state
// directly.
type StockLedger struct {
	stocks      repositories.StockRepository
	warehouses  repositories.WarehouseRepository
	cars        repositories.CarRepository
	log         zerolog.Logger
	maxRetries  int
	backoffBase time.Duration
}

// NewStockLedger creates a ledger over the given repositories
func NewStockLedger(stocks repositories.StockRepository, warehouses repositories.WarehouseRepository, cars repositories.CarRepository, log zerolog.Logger) *StockLedger {
	return &StockLedger{
		stocks:      stocks,
		warehouses:  warehouses,
		cars:        cars,
		log:         log.With().Str("component", "stock_ledger").Logger(),
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
	}
}

// Reserve holds qty units at (warehouseID, carID). Fails with
// entities.ErrInsufficientStock when fewer than qty units are free.
func (s *StockLedger) Reserve(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) error {
	if qty <= 0 {
		return &entities.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}

	return s.mutate(ctx, warehouseID, carID, false, func(loc *entities.StockLocation) error {
		if loc.Available() < qty {
			return &entities.InsufficientStockError{Requested: qty, Available: loc.Available()}
		}
		loc.ReservedQuantity += qty
		return nil
	})
}

// Release returns qty previously reserved units to the free pool.
// Releasing more than is reserved violates a ledger invariant and is
// surfaced as entities.ErrInternalInconsistency without mutating.
func (s *StockLedger) Release(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) error {
	if qty <= 0 {
		return &entities.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}

	return s.mutate(ctx, warehouseID, carID, false, func(loc *entities.StockLocation) error {
		if loc.ReservedQuantity < qty {
			s.log.Error().
				Str("warehouse_id", string(warehouseID)).
				Str("car_id", string(carID)).
				Int64("reserved", int64(loc.ReservedQuantity)).
				Int64("release", int64(qty)).
				Msg("release below zero reserved quantity")
			return pkgerrors.Wrap(entities.ErrInternalInconsistency, "release exceeds reserved quantity")
		}
		loc.ReservedQuantity -= qty
		return nil
	})
}

// Commit finalizes qty reserved units: both quantity and reserved
// quantity decrease, the car aggregate decreases, and the warehouse
// capacity is freed. Used for sales, transfer departures and completed
// reservations.
func (s *StockLedger) Commit(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) error {
	if qty <= 0 {
		return &entities.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}

	err := s.mutate(ctx, warehouseID, carID, false, func(loc *entities.StockLocation) error {
		if loc.ReservedQuantity < qty {
			s.log.Error().
				Str("warehouse_id", string(warehouseID)).
				Str("car_id", string(carID)).
				Int64("reserved", int64(loc.ReservedQuantity)).
				Int64("commit", int64(qty)).
				Msg("commit exceeds reserved quantity")
			return pkgerrors.Wrap(entities.ErrInternalInconsistency, "commit exceeds reserved quantity")
		}
		loc.Quantity -= qty
		loc.ReservedQuantity -= qty
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.adjustCarAggregate(ctx, carID, -qty); err != nil {
		return err
	}
	return s.warehouses.AdjustCapacityUsed(ctx, warehouseID, -qty)
}

// Receive adds qty inbound units at (warehouseID, carID), creating the
// ledger row if needed. Fails with entities.ErrCapacityExceeded when the
// warehouse ceiling would be crossed; no mutation is kept in that case.
func (s *StockLedger) Receive(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) error {
	if qty <= 0 {
		return &entities.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}

	// The car must exist before anything is touched: an unknown id
	// must not leave an orphan ledger row behind.
	if _, err := s.cars.Find(ctx, carID); err != nil {
		return err
	}

	// Capacity is claimed first; the repository enforces the ceiling
	// atomically. A later ledger failure hands the claim back.
	if err := s.warehouses.AdjustCapacityUsed(ctx, warehouseID, qty); err != nil {
		return err
	}

	err := s.mutate(ctx, warehouseID, carID, true, func(loc *entities.StockLocation) error {
		loc.Quantity += qty
		return nil
	})
	if err != nil {
		s.compensateCapacity(ctx, warehouseID, -qty)
		return err
	}

	if err := s.adjustCarAggregate(ctx, carID, qty); err != nil {
		s.compensateCapacity(ctx, warehouseID, -qty)
		s.compensateStock(ctx, warehouseID, carID, qty)
		return err
	}
	return nil
}

// Snapshot returns the current ledger row for reporting. It never blocks
// writers; readers may observe slightly stale state.
func (s *StockLedger) Snapshot(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID) (*entities.StockLocation, error) {
	return s.stocks.Get(ctx, warehouseID, carID)
}

// mutate runs one read-modify-CAS cycle with bounded retries and jittered
// backoff. apply sees a copy of the row; it is only persisted when the
// version is still the one read.
func (s *StockLedger) mutate(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, createIfMissing bool, apply func(*entities.StockLocation) error) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		loc, err := s.stocks.Get(ctx, warehouseID, carID)
		if errors.Is(err, entities.ErrNotFound) && createIfMissing {
			fresh, verr := entities.NewStockLocation(warehouseID, carID, 0)
			if verr != nil {
				return verr
			}
			if aerr := apply(fresh); aerr != nil {
				return aerr
			}
			if perr := s.stocks.Put(ctx, fresh); perr == nil {
				return nil
			} else if !errors.Is(perr, entities.ErrConflict) {
				return perr
			}
			// Row appeared concurrently; fall through to retry.
			s.sleepBackoff(ctx, attempt)
			continue
		}
		if err != nil {
			return err
		}

		next := *loc
		if err := apply(&next); err != nil {
			return err
		}
		if err := next.CheckInvariant(); err != nil {
			return err
		}
		next.LastUpdated = time.Now().UTC()

		err = s.stocks.UpdateWithVersion(ctx, &next, loc.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrConflict) {
			return err
		}

		s.log.Debug().
			Str("warehouse_id", string(warehouseID)).
			Str("car_id", string(carID)).
			Int("attempt", attempt+1).
			Msg("ledger CAS attempt lost, retrying")
		s.sleepBackoff(ctx, attempt)
	}

	return pkgerrors.Wrapf(entities.ErrConflict, "ledger row %s/%s contended beyond %d attempts", warehouseID, carID, s.maxRetries)
}

// adjustCarAggregate keeps the car's aggregate stock figure equal to the
// sum of its ledger rows, using the same bounded CAS discipline.
func (s *StockLedger) adjustCarAggregate(ctx context.Context, carID entities.CarID, delta entities.Quantity) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		car, err := s.cars.Find(ctx, carID)
		if err != nil {
			return err
		}

		next := *car
		next.QuantityInStock += delta
		if next.QuantityInStock < 0 {
			return pkgerrors.Wrap(entities.ErrInternalInconsistency, "car aggregate stock below zero")
		}
		next.UpdatedAt = time.Now().UTC()

		err = s.cars.UpdateWithVersion(ctx, &next, car.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrConflict) {
			return err
		}
		s.sleepBackoff(ctx, attempt)
	}

	return pkgerrors.Wrapf(entities.ErrConflict, "car %s contended beyond %d attempts", carID, s.maxRetries)
}

// compensateStock backs qty received units out of the ledger row after
// the car aggregate could not follow, so the row and the aggregate stay
// reconcilable.
func (s *StockLedger) compensateStock(ctx context.Context, warehouseID entities.WarehouseID, carID entities.CarID, qty entities.Quantity) {
	err := s.mutate(ctx, warehouseID, carID, false, func(loc *entities.StockLocation) error {
		loc.Quantity -= qty
		return nil
	})
	if err != nil {
		s.log.Error().
			Err(err).
			Str("warehouse_id", string(warehouseID)).
			Str("car_id", string(carID)).
			Int64("quantity", int64(qty)).
			Msg("failed to back received units out of the ledger")
	}
}

func (s *StockLedger) compensateCapacity(ctx context.Context, warehouseID entities.WarehouseID, delta entities.Quantity) {
	if err := s.warehouses.AdjustCapacityUsed(ctx, warehouseID, delta); err != nil {
		s.log.Error().
			Err(err).
			Str("warehouse_id", string(warehouseID)).
			Int64("delta", int64(delta)).
			Msg("failed to hand back warehouse capacity")
	}
}

// sleepBackoff waits an exponentially growing, jittered interval between
// CAS attempts, honoring context cancellation.
func (s *StockLedger) sleepBackoff(ctx context.Context, attempt int) {
	base := s.backoffBase << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}
