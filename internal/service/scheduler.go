package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
)

// CycleRunner runs one dispatch cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*DispatchResult, error)
}

// Scheduler runs dispatch cycles on a fixed interval for deployments without an
// external cron. A tick is skipped while the previous cycle is still running.
type Scheduler struct {
	Runner   CycleRunner
	Interval time.Duration
	Logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	inFlight  sync.WaitGroup
}

func NewScheduler(runner CycleRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{Runner: runner, Interval: interval, Logger: logger}
}

// Start runs a cycle immediately and then on every tick until ctx is cancelled.
// It returns only after the cycle in progress has finished.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info("dispatch scheduler started", zap.Duration("interval", s.Interval))
	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.inFlight.Add(1)
			go func() {
				defer s.inFlight.Done()
				s.tick(ctx)
			}()
		case <-ctx.Done():
			s.Logger.Info("dispatch scheduler stopping, waiting for cycle in progress")
			s.inFlight.Wait()
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.Logger.Info("previous dispatch cycle still running, skipping tick")
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	result, err := s.Runner.Run(ctx)
	switch {
	case errors.Is(err, appErrors.ErrDispatchInProgress):
		s.Logger.Info("dispatch cycle already running elsewhere")
	case err != nil:
		s.Logger.Error("dispatch cycle failed", zap.Error(err))
	case result.Due > 0:
		s.Logger.Info("dispatch cycle complete", zap.Int("sent", result.Sent), zap.Int("failed", result.Failed))
	}
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
