package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"authwatch/internal/eventsource"
	"authwatch/internal/metrics"
)

// JobProcessLogs is the detection job's name, and the key of its
// task_settings row.
const JobProcessLogs = "process_logs"

// Runner executes one detection run: advance the window, list the active
// users, analyze each one. Users are independent within a run, so they are
// processed with bounded parallelism. Per-user failures are logged and
// skipped; only window or source failures fail the run.
type Runner struct {
	windows     *WindowTracker
	source      eventsource.Source
	analyzer    *Analyzer
	concurrency int
	metrics     metrics.Recorder
	logger      *zap.Logger
}

func NewRunner(windows *WindowTracker, source eventsource.Source, analyzer *Analyzer, concurrency int, m metrics.Recorder, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		windows:     windows,
		source:      source,
		analyzer:    analyzer,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	start, end, err := r.windows.Advance(ctx, JobProcessLogs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to advance detection window: %w", err)
	}

	r.logger.Info("detection run started",
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	usernames, err := r.source.UsernamesInWindow(ctx, start, end)
	if err != nil {
		// The window was already advanced; these events are lost to the
		// at-least-once trade-off rather than retried.
		return fmt.Errorf("failed to list usernames in window: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, username := range usernames {
		username := username
		g.Go(func() error {
			if err := r.processUser(gctx, username, start, end); err != nil {
				// Not fatal to the run: other users proceed.
				r.logger.Error("failed to process user",
					zap.Error(err),
					zap.String("username", username),
				)
				r.metrics.RecordUserFailure()
			}
			return nil
		})
	}

	_ = g.Wait()

	r.logger.Info("detection run finished",
		zap.Int("users", len(usernames)),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	return nil
}

func (r *Runner) processUser(ctx context.Context, username string, start, end time.Time) error {
	events, err := r.source.EventsForUser(ctx, username, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	return r.analyzer.Analyze(ctx, username, events)
}
