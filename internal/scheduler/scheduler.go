// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aethra/krishi/internal/logging"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is one unit of background work
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler
type Scheduler struct {
	cron gocron.Scheduler
	log  *zap.Logger
}

// New creates a stopped scheduler
func New(log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logging.NewGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{cron: cron, log: log}, nil
}

// Every registers task to run at a fixed interval. A run that is still
// in progress when the next one is due causes that run to be skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			started := time.Now()
			if err := task(ctx); err != nil {
				s.log.Error("job failed", zap.String("job", name), zap.Error(err))
				return
			}
			s.log.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Sequence runs tasks in order, stopping at the first error
func Sequence(tasks ...Task) Task {
	return func(ctx context.Context) error {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Start begins running registered jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}
