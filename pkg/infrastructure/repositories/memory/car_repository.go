// Package memory provides mutex-guarded in-memory repository
// implementations, used by the test suites and as the storage backend
// when no database path is configured.
package memory

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// CarRepository is an in-memory entities.Car store.
type CarRepository struct {
	mu   sync.RWMutex
	cars map[entities.CarID]*entities.Car
}

var _ repositories.CarRepository = (*CarRepository)(nil)

// NewCarRepository creates an empty in-memory car repository
func NewCarRepository() *CarRepository {
	return &CarRepository{cars: make(map[entities.CarID]*entities.Car)}
}

// Create adds a new car
func (r *CarRepository) Create(ctx context.Context, car *entities.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cars[car.ID]; exists {
		return pkgerrors.Wrapf(entities.ErrConflict, "car %s already exists", car.ID)
	}
	clone := *car
	r.cars[car.ID] = &clone
	return nil
}

// Find returns the car with the given id, excluding soft-deleted rows
func (r *CarRepository) Find(ctx context.Context, id entities.CarID) (*entities.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	car, exists := r.cars[id]
	if !exists || car.Deleted() {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "car %s", id)
	}
	clone := *car
	return &clone, nil
}

// List returns all non-deleted cars
func (r *CarRepository) List(ctx context.Context) ([]*entities.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Car, 0, len(r.cars))
	for _, car := range r.cars {
		if car.Deleted() {
			continue
		}
		clone := *car
		out = append(out, &clone)
	}
	return out, nil
}

// UpdateWithVersion writes car if the stored version matches
func (r *CarRepository) UpdateWithVersion(ctx context.Context, car *entities.Car, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.cars[car.ID]
	if !exists || current.Deleted() {
		return pkgerrors.Wrapf(entities.ErrNotFound, "car %s", car.ID)
	}
	if current.Version != expectedVersion {
		return pkgerrors.Wrapf(entities.ErrConflict, "car %s: version %d, expected %d", car.ID, current.Version, expectedVersion)
	}

	clone := *car
	clone.Version = expectedVersion + 1
	clone.UpdatedAt = time.Now().UTC()
	r.cars[car.ID] = &clone
	return nil
}

// SoftDelete marks the car deleted; reads no longer return it
func (r *CarRepository) SoftDelete(ctx context.Context, id entities.CarID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	car, exists := r.cars[id]
	if !exists || car.Deleted() {
		return pkgerrors.Wrapf(entities.ErrNotFound, "car %s", id)
	}
	now := time.Now().UTC()
	car.DeletedAt = &now
	car.Version++
	return nil
}
