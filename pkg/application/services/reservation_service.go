package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// ReservationManager creates and transitions customer stock holds,
// delegating every unit movement to the StockLedger.
type ReservationManager struct {
	ledger       *StockLedger
	reservations repositories.ReservationRepository
	cars         repositories.CarRepository
	stocks       repositories.StockRepository
	ttl          time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewReservationManager creates a reservation manager. ttl is the hold
// duration applied when a reservation is created without an explicit
// deadline.
func NewReservationManager(ledger *StockLedger, reservations repositories.ReservationRepository, cars repositories.CarRepository, stocks repositories.StockRepository, ttl time.Duration, log zerolog.Logger) *ReservationManager {
	return &ReservationManager{
		ledger:       ledger,
		reservations: reservations,
		cars:         cars,
		stocks:       stocks,
		ttl:          ttl,
		log:          log.With().Str("component", "reservation_manager").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create places a Pending hold of qty units for reservedBy until
// expiresAt. The warehouse is chosen greedily: most free units first,
// first one able to satisfy the full quantity wins. Split-warehouse
// reservations are not supported; when no single warehouse suffices the
// request fails with entities.ErrInsufficientStock. A zero expiresAt
// applies the manager's default hold TTL.
func (m *ReservationManager) Create(ctx context.Context, carID entities.CarID, qty entities.Quantity, reservedBy string, expiresAt time.Time) (*entities.Reservation, error) {
	if qty <= 0 {
		return nil, &entities.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	if reservedBy == "" {
		return nil, &entities.ValidationError{Field: "reserved_by", Reason: "holder identity cannot be empty"}
	}
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(m.ttl)
	}
	if !expiresAt.After(m.now()) {
		return nil, &entities.ValidationError{Field: "expires_at", Reason: "expiry must be in the future"}
	}

	if _, err := m.cars.Find(ctx, carID); err != nil {
		return nil, err
	}

	warehouseID, err := m.allocateWarehouse(ctx, carID, qty)
	if err != nil {
		return nil, err
	}

	if err := m.ledger.Reserve(ctx, warehouseID, carID, qty); err != nil {
		return nil, err
	}

	reservation := entities.NewReservation(carID, warehouseID, qty, reservedBy, expiresAt)
	if err := m.reservations.Create(ctx, reservation); err != nil {
		// The hold is already on the ledger; hand it back before failing.
		if rerr := m.ledger.Release(ctx, warehouseID, carID, qty); rerr != nil {
			m.log.Error().Err(rerr).
				Str("car_id", string(carID)).
				Str("warehouse_id", string(warehouseID)).
				Msg("failed to release ledger hold after reservation insert failure")
		}
		return nil, err
	}

	m.log.Info().
		Str("reservation_id", reservation.ID.String()).
		Str("car_id", string(carID)).
		Str("warehouse_id", string(warehouseID)).
		Int64("quantity", int64(qty)).
		Time("expires_at", expiresAt).
		Msg("reservation created")
	return reservation, nil
}

// Confirm finalizes the holder's intent to purchase. No ledger change.
func (m *ReservationManager) Confirm(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	reservation, err := m.reservations.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.Status == entities.ReservationPending && reservation.ExpiredAt(m.now()) {
		// Past-deadline holds belong to the expiration sweep.
		return nil, &entities.StateTransitionError{Entity: "reservation", From: reservation.Status.String(), To: entities.ReservationConfirmed.String()}
	}
	if err := m.claimStatus(ctx, reservation, entities.ReservationConfirmed); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Cancel releases the hold on explicit holder action, from Pending or
// Confirmed.
func (m *ReservationManager) Cancel(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	reservation, err := m.reservations.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	// The claim must come first: only the actor that wins the
	// transition may release the hold, or a cancel racing the
	// expiration sweep would release it twice.
	if err := m.claimStatus(ctx, reservation, entities.ReservationCancelled); err != nil {
		return nil, err
	}
	if err := m.ledger.Release(ctx, reservation.WarehouseID, reservation.CarID, reservation.Quantity); err != nil {
		return nil, err
	}

	m.log.Info().Str("reservation_id", id.String()).Msg("reservation cancelled")
	return reservation, nil
}

// Complete finalizes the sale from Confirmed: the reserved units leave
// stock, and the car flips to Sold when its aggregate reaches zero.
func (m *ReservationManager) Complete(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	reservation, err := m.reservations.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.claimStatus(ctx, reservation, entities.ReservationCompleted); err != nil {
		return nil, err
	}
	if err := m.ledger.Commit(ctx, reservation.WarehouseID, reservation.CarID, reservation.Quantity); err != nil {
		return nil, err
	}

	if err := m.markSoldIfDepleted(ctx, reservation.CarID); err != nil {
		m.log.Warn().Err(err).Str("car_id", string(reservation.CarID)).Msg("could not update car status after sale")
	}

	m.log.Info().
		Str("reservation_id", id.String()).
		Str("car_id", string(reservation.CarID)).
		Int64("quantity", int64(reservation.Quantity)).
		Msg("reservation completed")
	return reservation, nil
}

// Expire transitions an overdue Pending reservation and releases its
// units. Called by the expiration sweep only. A reservation that is
// already Expired is a no-op, not an error.
func (m *ReservationManager) Expire(ctx context.Context, id uuid.UUID) error {
	reservation, err := m.reservations.Find(ctx, id)
	if err != nil {
		return err
	}

	if reservation.Status == entities.ReservationExpired {
		return nil
	}
	if err := m.claimStatus(ctx, reservation, entities.ReservationExpired); err != nil {
		// Losing the claim to another sweep keeps the no-op contract.
		var transitionErr *entities.StateTransitionError
		if pkgerrors.As(err, &transitionErr) && transitionErr.From == entities.ReservationExpired.String() {
			return nil
		}
		return err
	}
	if err := m.ledger.Release(ctx, reservation.WarehouseID, reservation.CarID, reservation.Quantity); err != nil {
		return err
	}

	m.log.Info().
		Str("reservation_id", id.String()).
		Str("car_id", string(reservation.CarID)).
		Int64("quantity", int64(reservation.Quantity)).
		Msg("reservation expired")
	return nil
}

// Find returns a reservation by id
func (m *ReservationManager) Find(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	return m.reservations.Find(ctx, id)
}

// claimStatus wins the transition to next or reports why it could not.
// An illegal transition is rejected against the entity's table; losing
// the conditional write to another actor surfaces the status the
// winner left behind.
func (m *ReservationManager) claimStatus(ctx context.Context, reservation *entities.Reservation, next entities.ReservationStatus) error {
	from := reservation.Status
	if err := reservation.Transition(next); err != nil {
		return err
	}
	if err := m.reservations.UpdateStatus(ctx, reservation.ID, from, next); err != nil {
		reservation.Status = from
		if pkgerrors.Is(err, entities.ErrConflict) {
			current, ferr := m.reservations.Find(ctx, reservation.ID)
			if ferr != nil {
				return ferr
			}
			return &entities.StateTransitionError{Entity: "reservation", From: current.Status.String(), To: next.String()}
		}
		return err
	}
	return nil
}

// allocateWarehouse ranks warehouses by free units descending and picks
// the first able to hold the full quantity.
func (m *ReservationManager) allocateWarehouse(ctx context.Context, carID entities.CarID, qty entities.Quantity) (entities.WarehouseID, error) {
	locations, err := m.stocks.ListByCar(ctx, carID)
	if err != nil {
		return "", err
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Available() != locations[j].Available() {
			return locations[i].Available() > locations[j].Available()
		}
		return locations[i].WarehouseID < locations[j].WarehouseID
	})

	var totalAvailable entities.Quantity
	for _, loc := range locations {
		if loc.Available() >= qty {
			return loc.WarehouseID, nil
		}
		totalAvailable += loc.Available()
	}

	return "", pkgerrors.WithStack(&entities.InsufficientStockError{Requested: qty, Available: totalAvailable})
}

// markSoldIfDepleted flips the car to Sold when the last unit left
// stock. Retries once on a version race; a second conflict is left to
// the next sale to reconcile.
func (m *ReservationManager) markSoldIfDepleted(ctx context.Context, carID entities.CarID) error {
	for attempt := 0; attempt < 2; attempt++ {
		car, err := m.cars.Find(ctx, carID)
		if err != nil {
			return err
		}
		if car.QuantityInStock > 0 || car.Status == entities.CarSold {
			return nil
		}
		updated := *car
		updated.Status = entities.CarSold
		err = m.cars.UpdateWithVersion(ctx, &updated, car.Version)
		if err == nil {
			m.log.Info().Str("car_id", string(carID)).Msg("car marked sold")
			return nil
		}
		if !pkgerrors.Is(err, entities.ErrConflict) {
			return err
		}
	}
	return pkgerrors.Wrapf(entities.ErrConflict, "marking car %s sold", carID)
}
