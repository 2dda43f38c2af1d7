package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// JobExecutionRepository is an in-memory job audit trail.
type JobExecutionRepository struct {
	mu   sync.RWMutex
	jobs []*entities.JobExecution
}

var _ repositories.JobExecutionRepository = (*JobExecutionRepository)(nil)

// NewJobExecutionRepository creates an empty in-memory job repository
func NewJobExecutionRepository() *JobExecutionRepository {
	return &JobExecutionRepository{}
}

// Append records the start of a run
func (r *JobExecutionRepository) Append(ctx context.Context, job *entities.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *job
	r.jobs = append(r.jobs, &clone)
	return nil
}

// Close records the outcome of a previously appended run
func (r *JobExecutionRepository) Close(ctx context.Context, job *entities.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, stored := range r.jobs {
		if stored.ID == job.ID {
			clone := *job
			r.jobs[i] = &clone
			return nil
		}
	}
	return pkgerrors.Wrapf(entities.ErrNotFound, "job execution %s", job.ID)
}

// ListRecent returns up to limit runs of jobType, newest first
func (r *JobExecutionRepository) ListRecent(ctx context.Context, jobType entities.JobType, limit int) ([]*entities.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.JobExecution
	for _, job := range r.jobs {
		if job.Type != jobType {
			continue
		}
		clone := *job
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MetricsRepository is an in-memory hourly snapshot store.
type MetricsRepository struct {
	mu        sync.RWMutex
	snapshots map[time.Time]*entities.MetricsSnapshot
}

var _ repositories.MetricsRepository = (*MetricsRepository)(nil)

// NewMetricsRepository creates an empty in-memory metrics repository
func NewMetricsRepository() *MetricsRepository {
	return &MetricsRepository{snapshots: make(map[time.Time]*entities.MetricsSnapshot)}
}

// Upsert stores the snapshot, overwriting any existing row for its hour
func (r *MetricsRepository) Upsert(ctx context.Context, snapshot *entities.MetricsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *snapshot
	clone.Hour = entities.TruncateHour(snapshot.Hour)
	r.snapshots[clone.Hour] = &clone
	return nil
}

// Get returns the snapshot for the given hour
func (r *MetricsRepository) Get(ctx context.Context, hour time.Time) (*entities.MetricsSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, exists := r.snapshots[entities.TruncateHour(hour)]
	if !exists {
		return nil, pkgerrors.Wrapf(entities.ErrNotFound, "metrics snapshot for %s", hour.Format(time.RFC3339))
	}
	clone := *snapshot
	return &clone, nil
}
