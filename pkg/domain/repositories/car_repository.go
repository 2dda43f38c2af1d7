package repositories

import (
	"context"

	"github.com/carstock/carstock/pkg/domain/entities"
)

// CarRepository provides access to car aggregate records. Implementations
// must exclude soft-deleted cars from every read and mutation path.
type CarRepository interface {
	Create(ctx context.Context, car *entities.Car) error
	Find(ctx context.Context, id entities.CarID) (*entities.Car, error)
	List(ctx context.Context) ([]*entities.Car, error)
	// UpdateWithVersion writes car conditioned on the stored version
	// matching expectedVersion, bumping the version by one. A mismatch
	// yields entities.ErrConflict and leaves the row unchanged.
	UpdateWithVersion(ctx context.Context, car *entities.Car, expectedVersion int64) error
	SoftDelete(ctx context.Context, id entities.CarID) error
}
