package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler re-runs the pipeline on a cron schedule. Each scheduled run is a
// full re-ingestion; the idempotent media handling keeps repeats cheap.
type Scheduler struct {
	scheduler gocron.Scheduler
	pipeline  *Pipeline
	cron      string
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler firing on the given cron expression.
func NewScheduler(p *Pipeline, cronExpr string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		pipeline:  p,
		cron:      cronExpr,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

// Run schedules the ingestion job and blocks until ctx is cancelled, then
// shuts the scheduler down waiting for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.cron, false),
		gocron.NewTask(func() {
			s.logger.Info("Running scheduled ingestion")
			start := time.Now()
			if err := s.pipeline.Run(ctx); err != nil {
				s.logger.Error("Scheduled ingestion failed", "error", err)
			}
			s.logger.Info("Scheduled ingestion finished", "duration", time.Since(start))
		}),
		gocron.WithName("ingest"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule ingestion job: %w", err)
	}

	s.scheduler.Start()
	s.logger.Info("Scheduler started", "cron", s.cron)

	<-ctx.Done()
	s.logger.Info("Stopping scheduler...")
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}
	return nil
}
