package service

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/pkg/logger"
)

// SweepLockKey guards the scheduled sweep so one replica runs it per tick
const SweepLockKey = "lock:expiry-sweep"

// Locker runs fn while holding a named lock. ran is false when another holder has it.
// *lock.Locker implements it.
type Locker interface {
	Run(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (ran bool, err error)
}

// SweepScheduler runs the expiry sweep periodically
type SweepScheduler struct {
	sweeper    *ExpirySweeper
	locker     Locker
	interval   time.Duration
	lockTTL    time.Duration
	runOnStart bool
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSweepScheduler creates a new sweep scheduler. A nil locker runs every tick.
func NewSweepScheduler(sweeper *ExpirySweeper, locker Locker, interval, lockTTL time.Duration, runOnStart bool, log *logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		sweeper:    sweeper,
		locker:     locker,
		interval:   interval,
		lockTTL:    lockTTL,
		runOnStart: runOnStart,
		logger:     log.WithComponent("expiry_scheduler"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("expiry scheduler started")

		if s.runOnStart {
			s.runCycle(ctx)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running cycle to finish
func (s *SweepScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SweepScheduler) runCycle(ctx context.Context) {
	sweep := func(ctx context.Context) error {
		_, err := s.sweeper.SweepAll(ctx)
		return err
	}

	if s.locker == nil {
		if err := sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("expiry sweep cycle failed")
		}
		return
	}

	ran, err := s.locker.Run(ctx, SweepLockKey, s.lockTTL, sweep)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep cycle failed")
		return
	}
	if !ran {
		s.logger.Debug().Msg("expiry sweep running on another replica, skipping tick")
	}
}
