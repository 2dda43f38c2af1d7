package entities

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies a background job family
type JobType string

const (
	JobReservationExpiration JobType = "reservation_expiration"
	JobMetricsRollup         JobType = "metrics_rollup"
)

// JobStatus represents the outcome of a background run
type JobStatus int

const (
	JobRunning JobStatus = iota
	JobCompleted
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobCompleted:
		return "Completed"
	case JobFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// JobExecution is an append-only audit record of one background run.
// It is written once when the run starts and closed exactly once.
type JobExecution struct {
	ID             uuid.UUID
	Type           JobType
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         JobStatus
	ItemsProcessed int
	Error          string
}

// StartJob opens a Running execution record for one tick
func StartJob(jobType JobType) *JobExecution {
	return &JobExecution{
		ID:        uuid.New(),
		Type:      jobType,
		StartedAt: time.Now().UTC(),
		Status:    JobRunning,
	}
}

// Complete closes the run successfully with the processed item count
func (j *JobExecution) Complete(itemsProcessed int) {
	now := time.Now().UTC()
	j.FinishedAt = &now
	j.Status = JobCompleted
	j.ItemsProcessed = itemsProcessed
}

// Fail closes the run with an error; itemsProcessed records partial work
func (j *JobExecution) Fail(err error, itemsProcessed int) {
	now := time.Now().UTC()
	j.FinishedAt = &now
	j.Status = JobFailed
	j.ItemsProcessed = itemsProcessed
	if err != nil {
		j.Error = err.Error()
	}
}
