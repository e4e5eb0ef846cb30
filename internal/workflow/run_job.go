package workflow

import (
	"context"
	"fmt"

	"reelgen/internal/queue"
	"reelgen/internal/services"
)

// RunJob drives a single job through the remaining pipeline stages
// synchronously, without the background poll loop. It returns the job in
// its terminal state; a failed stage surfaces its error alongside the job.
func (m *Manager) RunJob(ctx context.Context, jobID int64) (*queue.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, services.Wrap(services.ErrNotFound, "workflow", "run", fmt.Sprintf("job %d", jobID), nil)
		}

		switch job.Status {
		case queue.StatusCompleted:
			return job, nil
		case queue.StatusFailed:
			return job, fmt.Errorf("job %d failed: %s", jobID, job.ErrorMessage)
		}

		if _, ok := m.stageByStart[job.Status]; !ok {
			return job, fmt.Errorf("job %d stuck in status %s", jobID, job.Status)
		}
		if err := m.processJob(ctx, job); err != nil {
			if refreshed, getErr := m.store.GetByID(ctx, jobID); getErr == nil && refreshed != nil {
				job = refreshed
			}
			return job, err
		}
	}
}
