package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/infrastructure/repositories/memory"
)

type stubJob struct {
	jobType entities.JobType
	items   int
	err     error
	runs    int
}

func (j *stubJob) Type() entities.JobType { return j.jobType }

func (j *stubJob) Run(ctx context.Context) (int, error) {
	j.runs++
	return j.items, j.err
}

func TestRunOnceAuditTrail(t *testing.T) {
	ctx := context.Background()
	jobs := memory.NewJobExecutionRepository()
	s := New(jobs, zerolog.Nop())

	t.Run("successful tick closes Completed", func(t *testing.T) {
		s.runOnce(ctx, &stubJob{jobType: "stub_ok", items: 7}, time.Second)

		recent, err := jobs.ListRecent(ctx, "stub_ok", 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, entities.JobCompleted, recent[0].Status)
		require.Equal(t, 7, recent[0].ItemsProcessed)
		require.NotNil(t, recent[0].FinishedAt)
		require.Empty(t, recent[0].Error)
	})

	t.Run("failing tick closes Failed with partial count", func(t *testing.T) {
		s.runOnce(ctx, &stubJob{jobType: "stub_fail", items: 2, err: errors.New("boom")}, time.Second)

		recent, err := jobs.ListRecent(ctx, "stub_fail", 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, entities.JobFailed, recent[0].Status)
		require.Equal(t, 2, recent[0].ItemsProcessed)
		require.Equal(t, "boom", recent[0].Error)
	})
}

func TestRunLoopImmediateTickAndShutdown(t *testing.T) {
	jobs := memory.NewJobExecutionRepository()
	s := New(jobs, zerolog.Nop())
	job := &stubJob{jobType: "stub_loop", items: 1}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunLoop(ctx, job, time.Hour, time.Second)
	}()

	// The first tick runs before the ticker fires.
	require.Eventually(t, func() bool {
		recent, err := jobs.ListRecent(context.Background(), "stub_loop", 1)
		return err == nil && len(recent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
	require.Equal(t, 1, job.runs)
}
