// Package jobs runs periodic maintenance: recurring entry generation and
// overdue marking.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/service"
)

const DefaultInterval = time.Hour

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Maintainer is the part of the service the maintenance tasks drive.
type Maintainer interface {
	ProcessRecurring(ctx context.Context) (domain.RecurringProcessResult, error)
	MarkOverdue(ctx context.Context) (int, error)
}

// MaintenanceTasks generates due recurring transactions first, then flags
// whatever became overdue. Both run as the system actor.
func MaintenanceTasks(m Maintainer, logger zerolog.Logger) []Task {
	return []Task{
		{
			Name: "process-recurring",
			Run: func(ctx context.Context) error {
				result, err := m.ProcessRecurring(service.WithActor(ctx, service.SystemActor))
				if err != nil {
					return err
				}
				if result.ProcessedCount > 0 {
					logger.Info().Str("component", "jobs").Int("generated", result.ProcessedCount).Msg("recurring entries processed")
				}
				return nil
			},
		},
		{
			Name: "mark-overdue",
			Run: func(ctx context.Context) error {
				n, err := m.MarkOverdue(service.WithActor(ctx, service.SystemActor))
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info().Str("component", "jobs").Int("marked", n).Msg("financial transactions marked overdue")
				}
				return nil
			},
		},
	}
}

type Runner struct {
	interval time.Duration
	tasks    []Task
	logger   zerolog.Logger
	ticks    func(time.Duration) (<-chan time.Time, func())
}

func NewRunner(interval time.Duration, logger zerolog.Logger, tasks ...Task) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		interval: interval,
		tasks:    tasks,
		logger:   logger,
		ticks: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}
}

// RunOnce runs every task in order. A failing task is logged and does not
// stop the ones after it; the joined errors are returned.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, task := range r.tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := task.Run(ctx); err != nil {
			r.logger.Error().Err(err).Str("component", "jobs").Str("task", task.Name).Msg("task failed")
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run executes the tasks immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticks, stop := r.ticks(r.interval)
	defer stop()

	r.logger.Info().Str("component", "jobs").Dur("interval", r.interval).Msg("maintenance runner started")
	_ = r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Str("component", "jobs").Msg("maintenance runner stopped")
			return
		case <-ticks:
			_ = r.RunOnce(ctx)
		}
	}
}
