package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// ReservationRepository is an in-memory entities.Reservation store.
type ReservationRepository struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]*entities.Reservation
}

var _ repositories.ReservationRepository = (*ReservationRepository)(nil)

// NewReservationRepository creates an empty in-memory reservation repository
func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{reservations: make(map[uuid.UUID]*entities.Reservation)}
}

// Create adds a new reservation
func (r *ReservationRepository) Create(ctx context.Context, reservation *entities.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[reservation.ID]; exists {
		return pkgerrors.Wrapf(entities.ErrConflict, "reservation %s already exists", reservation.ID)
	}
	clone := *reservation
	r.reservations[reservation.ID] = &clone
	return nil
}

// Find returns the reservation with the given id
func (r *ReservationRepository) Find(ctx context.Context, id uuid.UUID) (*entities.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, exists := r.reservations[id]
	if !exists {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", id)
	}
	clone := *reservation
	return &clone, nil
}

// Update overwrites the stored reservation
func (r *ReservationRepository) Update(ctx context.Context, reservation *entities.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[reservation.ID]; !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", reservation.ID)
	}
	clone := *reservation
	r.reservations[reservation.ID] = &clone
	return nil
}

// UpdateStatus moves the reservation from one status to the next only
// if the stored status still matches from
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.ReservationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, exists := r.reservations[id]
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "reservation %s", id)
	}
	if reservation.Status != from {
		return pkgerrors.Wrapf(entities.ErrConflict, "reservation %s is %s, not %s", id, reservation.Status, from)
	}
	reservation.Status = next
	reservation.UpdatedAt = time.Now().UTC()
	return nil
}

// ListExpired returns Pending reservations with a deadline before asOf
func (r *ReservationRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*entities.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Reservation
	for _, reservation := range r.reservations {
		if reservation.Status != entities.ReservationPending || !reservation.ExpiredAt(asOf) {
			continue
		}
		clone := *reservation
		out = append(out, &clone)
	}
	return out, nil
}

// CountActive returns the Pending reservation count and their total units
func (r *ReservationRepository) CountActive(ctx context.Context) (int64, entities.Quantity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	var units entities.Quantity
	for _, reservation := range r.reservations {
		if reservation.Status != entities.ReservationPending {
			continue
		}
		count++
		units += reservation.Quantity
	}
	return count, units, nil
}

// TransferRepository is an in-memory entities.TransferOrder store.
type TransferRepository struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]*entities.TransferOrder
}

var _ repositories.TransferRepository = (*TransferRepository)(nil)

// NewTransferRepository creates an empty in-memory transfer repository
func NewTransferRepository() *TransferRepository {
	return &TransferRepository{transfers: make(map[uuid.UUID]*entities.TransferOrder)}
}

// Create adds a new transfer order
func (r *TransferRepository) Create(ctx context.Context, order *entities.TransferOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transfers[order.ID]; exists {
		return pkgerrors.Wrapf(entities.ErrConflict, "transfer %s already exists", order.ID)
	}
	clone := *order
	r.transfers[order.ID] = &clone
	return nil
}

// UpdateStatus moves the order from one status to the next only if the
// stored status still matches from
func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.TransferStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.transfers[id]
	if !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", id)
	}
	if order.Status != from {
		return pkgerrors.Wrapf(entities.ErrConflict, "transfer %s is %s, not %s", id, order.Status, from)
	}
	order.Status = next
	if next.Terminal() {
		now := time.Now().UTC()
		order.CompletedAt = &now
	} else {
		order.CompletedAt = nil
	}
	return nil
}

// Find returns the transfer order with the given id
func (r *TransferRepository) Find(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.transfers[id]
	if !exists {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", id)
	}
	clone := *order
	return &clone, nil
}

// Update overwrites the stored transfer order
func (r *TransferRepository) Update(ctx context.Context, order *entities.TransferOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transfers[order.ID]; !exists {
		return pkgerrors.Wrapf(entities.ErrNotFound, "transfer %s", order.ID)
	}
	clone := *order
	r.transfers[order.ID] = &clone
	return nil
}
