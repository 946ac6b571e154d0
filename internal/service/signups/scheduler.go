package signups

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/kirinyoku/amparena/internal/notify"
)

// Scheduler periodically sends the welcome message to new signups.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(svc *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{svc: svc, interval: interval, logger: logger}
}

// Run blocks until ctx is done. A non-positive interval disables the job.
func (s *Scheduler) Run(ctx context.Context) error {
	const op = "service.signups.Scheduler.Run"

	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.svc.NotifyPending(ctx, notify.TemplateWelcome, false); err != nil {
				s.logger.Error("scheduled signup notification", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("signup-welcome"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("%s: %w", op, err)
	}

	sched.Start()
	s.logger.Info("signup notifier started", slog.Duration("interval", s.interval))

	<-ctx.Done()

	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
