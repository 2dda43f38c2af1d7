package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle state of a stock hold
type ReservationStatus int

const (
	ReservationPending ReservationStatus = iota
	ReservationConfirmed
	ReservationExpired
	ReservationCancelled
	ReservationCompleted
)

func (s ReservationStatus) String() string {
	switch s {
	case ReservationPending:
		return "Pending"
	case ReservationConfirmed:
		return "Confirmed"
	case ReservationExpired:
		return "Expired"
	case ReservationCancelled:
		return "Cancelled"
	case ReservationCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is permitted
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationExpired, ReservationCancelled, ReservationCompleted:
		return true
	default:
		return false
	}
}

// reservationTransitions is the legal-transition table; anything not
// listed here is rejected.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled, ReservationExpired},
	ReservationConfirmed: {ReservationCompleted, ReservationCancelled},
}

// CanTransitionTo reports whether moving to next is legal
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a time-bounded hold of stock units for a customer. It is
// bound to the single warehouse chosen at creation time, so release and
// commit always target the ledger row the reserve targeted.
type Reservation struct {
	ID          uuid.UUID
	CarID       CarID
	WarehouseID WarehouseID
	Quantity    Quantity
	ReservedBy  string
	ExpiresAt   time.Time
	Status      ReservationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewReservation creates a Pending reservation
func NewReservation(carID CarID, warehouseID WarehouseID, quantity Quantity, reservedBy string, expiresAt time.Time) *Reservation {
	now := time.Now().UTC()
	return &Reservation{
		ID:          uuid.New(),
		CarID:       carID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		ReservedBy:  reservedBy,
		ExpiresAt:   expiresAt,
		Status:      ReservationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the reservation to next, enforcing the legal-transition
// table. Terminal states are immutable.
func (r *Reservation) Transition(next ReservationStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return &StateTransitionError{Entity: "reservation", From: r.Status.String(), To: next.String()}
	}
	r.Status = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ExpiredAt reports whether the hold deadline has passed as of now
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
