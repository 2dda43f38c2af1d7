package repositories

import (
	"context"
	"time"

	"github.com/carstock/carstock/pkg/domain/entities"
)

// JobExecutionRepository stores the append-only audit trail of background
// runs. A record is appended once when the run starts and closed exactly
// once when it finishes.
type JobExecutionRepository interface {
	Append(ctx context.Context, job *entities.JobExecution) error
	Close(ctx context.Context, job *entities.JobExecution) error
	ListRecent(ctx context.Context, jobType entities.JobType, limit int) ([]*entities.JobExecution, error)
}

// MetricsRepository stores hourly aggregate snapshots. Upsert overwrites
// an existing snapshot for the same truncated hour.
type MetricsRepository interface {
	Upsert(ctx context.Context, snapshot *entities.MetricsSnapshot) error
	Get(ctx context.Context, hour time.Time) (*entities.MetricsSnapshot, error)
}
