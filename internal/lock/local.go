package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Native locker.  It gives no protection
// across processes and exists for single-node development
// (LOCK_BACKEND=local) and tests.
type LocalLocker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sems: make(map[string]chan struct{})}
}

func (l *LocalLocker) sem(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[name]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[name] = s
	}
	return s
}

func (l *LocalLocker) Lock(ctx context.Context, name string, timeout time.Duration) (Outcome, error) {
	s := l.sem(name)
	select {
	case s <- struct{}{}:
		return Acquired, nil
	default:
	}
	if timeout <= 0 {
		return TimedOut, nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s <- struct{}{}:
		return Acquired, nil
	case <-t.C:
		return TimedOut, nil
	case <-ctx.Done():
		return TimedOut, ctx.Err()
	}
}

func (l *LocalLocker) Unlock(_ context.Context, name string) (bool, error) {
	s := l.sem(name)
	select {
	case <-s:
		return true, nil
	default:
		return false, nil
	}
}
