package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carstock/carstock/pkg/domain/entities"
)

// ReservationRepository provides access to reservation records.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *entities.Reservation) error
	Find(ctx context.Context, id uuid.UUID) (*entities.Reservation, error)
	Update(ctx context.Context, reservation *entities.Reservation) error
	// UpdateStatus moves the reservation from one status to the next
	// in a single conditional write. It fails with entities.ErrConflict
	// when the stored status is no longer from, so of several actors
	// racing for the same transition exactly one wins.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.ReservationStatus) error
	// ListExpired returns Pending reservations whose deadline passed
	// before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*entities.Reservation, error)
	// CountActive returns the number of Pending reservations and the
	// total units they hold.
	CountActive(ctx context.Context) (int64, entities.Quantity, error)
}

// TransferRepository provides access to inter-warehouse transfer orders.
type TransferRepository interface {
	Create(ctx context.Context, order *entities.TransferOrder) error
	Find(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error)
	Update(ctx context.Context, order *entities.TransferOrder) error
	// UpdateStatus moves the order from one status to the next in a
	// single conditional write, failing with entities.ErrConflict when
	// the stored status is no longer from. A terminal next status also
	// stamps CompletedAt; a non-terminal one clears it.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, next entities.TransferStatus) error
}
