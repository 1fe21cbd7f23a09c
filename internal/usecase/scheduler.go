package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
)

// SchedulerDeps wires recurring jobs to the cron driver.
type SchedulerDeps struct {
	Driver         ports.Scheduler
	Pipeline       *Pipeline
	Validation     *ValidationEngine
	Aggregator     *Aggregator
	Securities     []string
	IngestSpec     string
	ValidationSpec string
	Lookback       time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Scheduler owns the recurring ingest and validate-then-aggregate jobs.
type Scheduler struct {
	deps SchedulerDeps
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Lookback <= 0 {
		deps.Lookback = DefaultLookback
	}
	return &Scheduler{deps: deps}
}

// Start registers the jobs and starts the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.deps.Driver == nil {
		return nil
	}

	if s.deps.Pipeline != nil && s.deps.IngestSpec != "" && len(s.deps.Securities) > 0 {
		if err := s.deps.Driver.Add(s.deps.IngestSpec, s.IngestAll); err != nil {
			return fmt.Errorf("schedule ingest: %w", err)
		}
	}
	if s.deps.Validation != nil && s.deps.ValidationSpec != "" {
		if err := s.deps.Driver.Add(s.deps.ValidationSpec, s.ValidateAndAggregate); err != nil {
			return fmt.Errorf("schedule validation: %w", err)
		}
	}

	return s.deps.Driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.deps.Driver == nil {
		return nil
	}
	return s.deps.Driver.Stop(ctx)
}

// IngestAll collects news for every tracked security. One failing security
// does not stop the others.
func (s *Scheduler) IngestAll(ctx context.Context) {
	to := s.deps.Now()
	from := to.Add(-s.deps.Lookback)
	for _, security := range s.deps.Securities {
		stored, err := s.deps.Pipeline.Collect(ctx, security, from, to)
		if err != nil {
			s.deps.Logger.Warn("scheduled ingest failed", "security", security, "error", err)
			continue
		}
		s.deps.Logger.Info("scheduled ingest", "security", security, "stored", len(stored))
	}
}

// ValidateAndAggregate runs one validation pass followed by the daily
// aggregation. Aggregation still runs when some validations were deferred.
func (s *Scheduler) ValidateAndAggregate(ctx context.Context) {
	report, err := s.deps.Validation.RunOnce(ctx)
	switch {
	case errors.Is(err, domain.ErrRetryLater):
		s.deps.Logger.Warn("validation incomplete, will retry", "run_id", report.RunID, "error", err)
	case err != nil:
		s.deps.Logger.Error("validation failed", "run_id", report.RunID, "error", err)
		return
	}

	if s.deps.Aggregator == nil {
		return
	}
	if _, err := s.deps.Aggregator.Run(ctx); err != nil {
		s.deps.Logger.Warn("aggregation failed", "error", err)
	}
}
