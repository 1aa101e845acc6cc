package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"authwatch/internal/metrics"
)

type fakeLocker struct {
	mu        sync.Mutex
	err       error
	acquires  int
	releases  int
	lastName  string
	lastTTL   time.Duration
	available bool
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.acquires++
	f.lastName = name
	f.lastTTL = ttl

	if f.err != nil {
		return false, nil, f.err
	}
	if !f.available {
		return false, nil, nil
	}
	return true, func() {
		f.mu.Lock()
		f.releases++
		f.mu.Unlock()
	}, nil
}

func (f *fakeLocker) stats() (acquires, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires, f.releases
}

func TestScheduler_RunsJobAtStartup(t *testing.T) {
	locker := &fakeLocker{available: true}
	s := New(locker, time.Minute, metrics.Noop{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	s.Register(Job{
		Name:     "process_logs",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			cancel()
			return nil
		},
	})

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	if got := runs.Load(); got != 1 {
		t.Errorf("handler runs = %d, want 1 (startup fire)", got)
	}
	acquires, releases := locker.stats()
	if acquires != 1 || releases != 1 {
		t.Errorf("lock acquires/releases = %d/%d, want 1/1", acquires, releases)
	}
	if locker.lastName != "process_logs" {
		t.Errorf("lock name = %q, want process_logs", locker.lastName)
	}
	if locker.lastTTL != time.Minute {
		t.Errorf("lock TTL = %v, want 1m", locker.lastTTL)
	}
}

func TestScheduler_SkipsWhenLockHeldElsewhere(t *testing.T) {
	locker := &fakeLocker{available: false}
	s := New(locker, time.Minute, metrics.Noop{}, zap.NewNop())

	var runs atomic.Int32
	s.Register(Job{
		Name:     "clean_models",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	// Let a few ticks elapse while the lock is held by another worker.
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if got := runs.Load(); got != 0 {
		t.Errorf("handler runs = %d, want 0 while lock is held elsewhere", got)
	}
	if acquires, _ := locker.stats(); acquires < 2 {
		t.Errorf("lock acquires = %d, want repeated attempts on each tick", acquires)
	}
}

func TestScheduler_LockErrorSkipsHandler(t *testing.T) {
	locker := &fakeLocker{err: errors.New("redis unreachable")}
	s := New(locker, time.Minute, metrics.Noop{}, zap.NewNop())

	var runs atomic.Int32
	s.Register(Job{
		Name:     "process_logs",
		Interval: time.Hour,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := runs.Load(); got != 0 {
		t.Errorf("handler runs = %d, want 0 when the lock cannot be acquired", got)
	}
}

func TestScheduler_HandlerFailureKeepsSchedule(t *testing.T) {
	locker := &fakeLocker{available: true}
	s := New(locker, time.Minute, metrics.Noop{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	s.Register(Job{
		Name:     "process_logs",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			if runs.Add(1) >= 2 {
				cancel()
				return nil
			}
			return errors.New("window query failed")
		},
	})

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not keep running after a handler failure")
	}

	if got := runs.Load(); got < 2 {
		t.Errorf("handler runs = %d, want at least 2 (failure must not stop the loop)", got)
	}
}
