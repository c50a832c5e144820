package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ask-kyra/internal/logging"
)

// Scheduler runs the daily digest job on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	logger     *logging.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
}

// New creates a scheduler for spec in UTC. An empty spec disables the job.
func New(spec string, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithLogger(ctx, logger.With(zap.String("component", "scheduler")))

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil || s.spec == "" {
		s.logger.Warn(s.ctx, "digest job not configured, scheduler idle")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info(s.ctx, "daily digest triggered", zap.String("spec", s.spec))
		if err := s.reportFunc(s.ctx); err != nil {
			s.logger.Error(s.ctx, "daily digest failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info(s.ctx, "scheduler started", zap.String("spec", s.spec))
	return nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		done := s.cron.Stop()
		<-done.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info(context.Background(), "scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
