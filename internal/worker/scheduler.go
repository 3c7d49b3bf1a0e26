package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/redisclient"
	"github.com/Fallstop/super-tracker-nz/internal/service"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
)

const sweepLockName = "sweep"

// PassRunner runs one ingestion pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*service.PassSummary, error)
}

// Locker guards a pass against concurrent scraper instances. Acquire returns
// redisclient.ErrLockHeld when another instance is sweeping.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// StatusRecorder persists the latest pass summary for other processes.
type StatusRecorder interface {
	SaveLastPass(ctx context.Context, summary interface{}) error
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running         bool                 `json:"running"`
	TriggerPending  bool                 `json:"trigger_pending"`
	IntervalSeconds float64              `json:"interval_seconds"`
	LastPass        *service.PassSummary `json:"last_pass,omitempty"`
}

// Scheduler runs ingestion passes back to back, waiting interval after each
// one finishes. Passes never overlap.
type Scheduler struct {
	runner   PassRunner
	locker   Locker
	status   StatusRecorder
	interval time.Duration
	trigger  chan struct{}
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	last    *service.PassSummary
}

// NewScheduler creates a scheduler. locker and status may be nil.
func NewScheduler(runner PassRunner, locker Locker, status StatusRecorder, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		runner:   runner,
		locker:   locker,
		status:   status,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   util.GetLogger(),
	}
}

// Run executes a pass immediately and then keeps sweeping until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting sweep scheduler", zap.Duration("interval", s.interval))

	s.runOnce(ctx)

	for {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Sweep scheduler stopping")
			return ctx.Err()
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			s.logger.Info("Sweep triggered")
		}
		s.runOnce(ctx)
	}
}

// Trigger asks for a pass as soon as the current one (if any) finishes.
// Requests made while one is already pending are coalesced; the return
// value reports whether this call queued a new request.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status reports whether a pass is running and the last completed summary.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:         s.running,
		TriggerPending:  len(s.trigger) > 0,
		IntervalSeconds: s.interval.Seconds(),
		LastPass:        s.last,
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx)
		if errors.Is(err, redisclient.ErrLockHeld) {
			s.logger.Info("Another instance is sweeping, skipping pass")
			return
		}
		if err != nil {
			s.logger.Warn("Failed to acquire sweep lock, skipping pass", zap.Error(err))
			return
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	s.setRunning(true)
	summary, err := s.runner.RunPass(ctx)
	s.setRunning(false)

	if summary == nil {
		if err != nil {
			s.logger.Error("Ingestion pass failed before it started", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	if s.status != nil {
		if err := s.status.SaveLastPass(ctx, summary); err != nil {
			s.logger.Warn("Failed to record pass status", zap.Error(err))
		}
	}
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

type redisLocker struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisLocker locks sweeps through Redis. ttl should outlast a pass.
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.client.AcquireLock(ctx, sweepLockName, l.ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
