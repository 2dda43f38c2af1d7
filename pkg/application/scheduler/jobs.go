package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/application/services"
	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// ExpirationJob sweeps overdue Pending reservations. A failure on one
// reservation is logged and skipped; the sweep keeps going so a single
// contended row cannot stall the rest of the batch.
type ExpirationJob struct {
	manager      *services.ReservationManager
	reservations repositories.ReservationRepository
	log          zerolog.Logger
	now          func() time.Time
}

// NewExpirationJob creates the reservation expiration sweep
func NewExpirationJob(manager *services.ReservationManager, reservations repositories.ReservationRepository, log zerolog.Logger) *ExpirationJob {
	return &ExpirationJob{
		manager:      manager,
		reservations: reservations,
		log:          log.With().Str("component", "expiration_job").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (j *ExpirationJob) Type() entities.JobType { return entities.JobReservationExpiration }

// Run expires every Pending reservation whose deadline has passed and
// returns the number successfully expired.
func (j *ExpirationJob) Run(ctx context.Context) (int, error) {
	overdue, err := j.reservations.ListExpired(ctx, j.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, reservation := range overdue {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := j.manager.Expire(ctx, reservation.ID); err != nil {
			j.log.Warn().Err(err).
				Str("reservation_id", reservation.ID.String()).
				Msg("could not expire reservation, will retry next sweep")
			continue
		}
		expired++
	}
	return expired, nil
}

// MetricsJob rolls up the hourly inventory snapshot.
type MetricsJob struct {
	aggregator *services.MetricsAggregator
}

// NewMetricsJob creates the metrics rollup job
func NewMetricsJob(aggregator *services.MetricsAggregator) *MetricsJob {
	return &MetricsJob{aggregator: aggregator}
}

func (j *MetricsJob) Type() entities.JobType { return entities.JobMetricsRollup }

// Run collects one snapshot; the item count is the number of cars rolled up.
func (j *MetricsJob) Run(ctx context.Context) (int, error) {
	snapshot, err := j.aggregator.Collect(ctx)
	if err != nil {
		return 0, err
	}
	return int(snapshot.TotalCars), nil
}
