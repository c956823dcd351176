package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
)

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	held bool
}

func (l *fakeLocker) Run(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	held := l.held
	l.mu.Unlock()

	if held {
		return false, nil
	}
	return true, fn(ctx)
}

func (l *fakeLocker) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

func TestSweepScheduler_RunOnStartTakesLock(t *testing.T) {
	store := newMemStore()
	seedSweep(store)
	locker := &fakeLocker{}
	sweeper := newTestSweeper(store, nil)

	sched := NewSweepScheduler(sweeper, locker, time.Hour, time.Minute, true, logger.Nop())
	sched.Start(context.Background())

	assert.Eventually(t, func() bool { return len(locker.calls()) == 1 }, time.Second, 5*time.Millisecond)
	sched.Stop()

	assert.Equal(t, []string{SweepLockKey}, locker.calls())
	assert.Len(t, store.alerts, 2)
}

func TestSweepScheduler_SkipsWhenLockHeld(t *testing.T) {
	store := newMemStore()
	seedSweep(store)
	locker := &fakeLocker{held: true}

	sched := NewSweepScheduler(newTestSweeper(store, nil), locker, time.Hour, time.Minute, true, logger.Nop())
	sched.Start(context.Background())

	assert.Eventually(t, func() bool { return len(locker.calls()) == 1 }, time.Second, 5*time.Millisecond)
	sched.Stop()

	assert.Empty(t, store.alerts)
}

func TestSweepScheduler_StopWithoutStart(t *testing.T) {
	sched := NewSweepScheduler(newTestSweeper(newMemStore(), nil), nil, time.Hour, time.Minute, false, logger.Nop())
	sched.Stop()
}
