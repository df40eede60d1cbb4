// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"travel-backend/internal/services"
	"travel-backend/internal/timeutil"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler recalculates every account balance
type Reconciler interface {
	ReconcileAll(ctx context.Context) (*services.ReconcileReport, error)
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewScheduler(reconciler Reconciler, schedule string, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cronLogger := zapCronLogger{log: logger.Sugar()}
	c := cron.New(
		cron.WithLocation(timeutil.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    30 * time.Minute,
		logger:     logger,
	}
}

// Start registers the jobs and starts the cron scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.ReconcileBalances); err != nil {
		return fmt.Errorf("schedule balance reconciliation %q: %w", s.schedule, err)
	}
	s.logger.Info("scheduled balance reconciliation", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done when running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ReconcileBalances is the nightly job: recompute every account and log drift
func (s *Scheduler) ReconcileBalances() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		s.logger.Error("balance reconciliation failed", zap.Error(err))
		return
	}
	if len(report.Drifted) > 0 || report.Failed > 0 {
		s.logger.Warn("balance reconciliation found problems",
			zap.Int("checked", report.Checked),
			zap.Int("drifted", len(report.Drifted)),
			zap.Int("failed", report.Failed))
	}
}
