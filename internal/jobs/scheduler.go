// Package jobs runs the background maintenance work: click history
// retention and the periodic global stats broadcast.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linkpulse/internal/analytics"
	"linkpulse/internal/config"
	"linkpulse/internal/database"
	"linkpulse/internal/realtime"
)

// Scheduler runs the recurring jobs on their own tickers. Jobs never
// overlap; a tick that fires while another job is mid-run is skipped.
type Scheduler struct {
	logger *slog.Logger
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc

	retentionJob *RetentionJob
	broadcastJob *BroadcastJob

	mu        sync.Mutex
	busy      bool
	isRunning bool
	tickers   []*time.Ticker
}

func NewScheduler(dbManager *database.DBManager, rollup *analytics.Rollup, broker *realtime.Broker, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	return &Scheduler{
		logger:       logger,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		retentionJob: NewRetentionJob(dbManager, logger, cfg),
		broadcastJob: NewBroadcastJob(rollup, broker, logger),
	}, nil
}

// Start launches the job loops. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Info("Background jobs already running")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	broadcastInterval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	s.runJobLoop("global_broadcast", broadcastInterval, false, s.broadcastJob.Run)
	s.runJobLoop("click_retention", 24*time.Hour, true, s.retentionJob.Run)

	s.logger.Info("Background jobs started",
		slog.Duration("broadcast_interval", broadcastInterval))
	return nil
}

// runJobLoop ticks the job at the given interval until the scheduler is
// stopped. With runNow set, the job also fires once immediately.
func (s *Scheduler) runJobLoop(name string, interval time.Duration, runNow bool, run func() error) {
	ticker := time.NewTicker(interval)

	s.mu.Lock()
	s.tickers = append(s.tickers, ticker)
	s.mu.Unlock()

	go func() {
		if runNow {
			s.executeJobSafely(name, run)
		}
		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, run)
			case <-s.ctx.Done():
				s.logger.Info("Job loop stopped", slog.String("job", name))
				return
			}
		}
	}()
}

// executeJobSafely serializes job runs and contains panics, so one bad
// run cannot take the scheduler down or wedge the other job.
func (s *Scheduler) executeJobSafely(name string, run func() error) {
	s.mu.Lock()
	if s.busy {
		s.logger.Debug("Skipping job run, previous job still active", slog.String("job", name))
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name), slog.Any("panic", r))
		}
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if err := run(); err != nil {
		s.logger.Error("Background job failed", slog.String("job", name), slog.Any("error", err))
	}
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, ticker := range s.tickers {
		ticker.Stop()
	}
	s.tickers = nil
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	s.logger.Info("Background jobs stopped")
}

// IsRunning reports whether the job loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
