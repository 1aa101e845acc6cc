// Package pipeline orchestrates a detection run: advancing the processed
// window, walking each active user's events through the detectors, and
// emitting alerts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/models"
	"authwatch/internal/repository/postgres"
)

// WindowTracker owns the contiguous, non-overlapping window a job has
// processed so far.
type WindowTracker struct {
	tasks  postgres.TaskSettingsRepository
	slice  time.Duration
	logger *zap.Logger
}

func NewWindowTracker(tasks postgres.TaskSettingsRepository, slice time.Duration, logger *zap.Logger) *WindowTracker {
	return &WindowTracker{tasks: tasks, slice: slice, logger: logger}
}

// Advance moves the job's window forward by one slice and returns it. On the
// first run it bootstraps a window ending at now. The new window is persisted
// before the caller processes it: if the run dies mid-window the next run
// moves on rather than reprocessing, trading lost events for at-least-once
// advancement.
func (t *WindowTracker) Advance(ctx context.Context, jobName string, now time.Time) (time.Time, time.Time, error) {
	task, err := t.tasks.Find(ctx, jobName)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to look up task settings for %s: %w", jobName, err)
	}

	if task == nil {
		start := now.Add(-t.slice)
		end := now
		err := t.tasks.Create(ctx, &models.TaskSettings{
			TaskName:  jobName,
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("failed to bootstrap window for %s: %w", jobName, err)
		}
		t.logger.Info("bootstrapped processing window",
			zap.String("job", jobName),
			zap.Time("start", start),
			zap.Time("end", end),
		)
		return start, end, nil
	}

	start := task.EndDate
	end := start.Add(t.slice)

	if err := t.tasks.UpdateWindow(ctx, jobName, start, end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to advance window for %s: %w", jobName, err)
	}

	return start, end, nil
}
