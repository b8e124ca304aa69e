package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

// Runner executes the progression of one resource.
type Runner interface {
	Run(ctx context.Context, res *domain.Resource) error
}

// Scheduler starts one progression run per accepted resource and tracks them
// so shutdown can wait for, or cancel, the runs still in flight.
type Scheduler struct {
	runner Runner
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu       sync.Mutex
	closed   bool
	inFlight atomic.Int64
}

func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		logger: logger.With("component", "progression_scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule starts a run for res and returns immediately. It returns false
// when the scheduler is shutting down.
func (s *Scheduler) Schedule(res *domain.Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("Scheduler closed; progression not started", "sid", res.SID)
		return false
	}

	s.inFlight.Add(1)
	progressionRunsInFlightGauge.Inc()
	s.group.Go(func() error {
		defer func() {
			s.inFlight.Add(-1)
			progressionRunsInFlightGauge.Dec()
		}()

		if err := s.runner.Run(s.ctx, res); err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info("Progression cancelled by shutdown", "sid", res.SID)
			} else {
				s.logger.Error("Progression stopped", "sid", res.SID, "error", err)
			}
		}
		return nil
	})
	return true
}

// Accepting reports whether Schedule would start a run.
func (s *Scheduler) Accepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// InFlight returns the number of runs not yet finished.
func (s *Scheduler) InFlight() int64 {
	return s.inFlight.Load()
}

// Shutdown stops accepting runs and waits for the running ones. When ctx is
// done first, the remaining runs are cancelled and awaited, and ctx's error
// is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached; cancelling progression runs", "in_flight", s.InFlight())
		s.cancel()
		<-done
		return ctx.Err()
	}
}
