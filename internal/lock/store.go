// Package lock implements named, cross-process mutexes for the booking
// flow.  A Store asks a Native locker first (MySQL GET_LOCK, Redis SET NX
// or an in-process map) and, when that backend reports it cannot provide
// named locks at all, takes a persistent insert-if-absent marker through a
// Fallback instead.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/appointment-booking/internal/observability/metrics"
)

// Outcome is the result of a native acquisition attempt.
type Outcome int

const (
	Acquired Outcome = iota
	TimedOut
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case TimedOut:
		return "timed_out"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// Native is a backend that provides named mutexes with a bounded wait.
// Lock must return Unsupported, not an error, when the backend has no
// named-lock facility; errors are reserved for backend failures.  Unlock on
// a name the process does not hold returns false and no error.
type Native interface {
	Lock(ctx context.Context, name string, timeout time.Duration) (Outcome, error)
	Unlock(ctx context.Context, name string) (bool, error)
}

// Fallback stores lock markers with an atomic add-if-absent write.  A
// marker older than its ttl no longer blocks acquisition.  Delete only
// removes a marker written by owner.
type Fallback interface {
	TryInsert(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, name, owner string) (bool, error)
}

var (
	// ErrTimeout is returned by WithLock when the lock could not be taken
	// within the timeout.  It is a contention outcome, not a failure.
	ErrTimeout = errors.New("lock: timed out waiting for named lock")
	// ErrNoBackend means the native locker is unsupported and no fallback
	// was configured.
	ErrNoBackend = errors.New("lock: no backend can provide named locks")
)

const releaseTimeout = 5 * time.Second

// Store coordinates native locks and the fallback marker path.
type Store struct {
	native        Native
	fallback      Fallback
	markerTTL     time.Duration
	retryInterval time.Duration
	owner         string
	log           logrus.FieldLogger
	metrics       *metrics.BookingMetrics
}

// Option customizes a Store.
type Option func(*Store)

// WithMarkerTTL sets how long a fallback marker blocks others before it is
// considered stale.
func WithMarkerTTL(d time.Duration) Option { return func(s *Store) { s.markerTTL = d } }

// WithRetryInterval sets the polling interval of the fallback path.
func WithRetryInterval(d time.Duration) Option { return func(s *Store) { s.retryInterval = d } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Store) { s.log = l } }

func WithMetrics(m *metrics.BookingMetrics) Option { return func(s *Store) { s.metrics = m } }

// NewStore returns a Store over the given backends.  Either may be nil; a
// nil native locker sends every acquisition to the fallback.
func NewStore(native Native, fallback Fallback, opts ...Option) *Store {
	host, _ := os.Hostname()
	s := &Store{
		native:        native,
		fallback:      fallback,
		markerTTL:     30 * time.Second,
		retryInterval: 50 * time.Millisecond,
		owner:         fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8]),
		log:           logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Acquire blocks for up to timeout trying to take the named lock.  It
// returns false with a nil error when the lock is held elsewhere for the
// whole wait.
func (s *Store) Acquire(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	started := time.Now()
	if s.native != nil {
		out, err := s.native.Lock(ctx, name, timeout)
		if err != nil {
			return false, fmt.Errorf("lock: native acquire %s: %w", name, err)
		}
		switch out {
		case Acquired:
			s.metrics.ObserveLockAcquire("native", "acquired", time.Since(started).Seconds())
			return true, nil
		case TimedOut:
			s.metrics.ObserveLockAcquire("native", "timeout", time.Since(started).Seconds())
			s.log.WithField("lock", name).WithField("timeout", timeout).Warn("lock: timed out")
			return false, nil
		}
		s.log.WithField("lock", name).Debug("lock: native locks unsupported, using marker")
	}
	if s.fallback == nil {
		return false, ErrNoBackend
	}
	ok, err := s.acquireMarker(ctx, name, started.Add(timeout))
	if err != nil {
		return false, err
	}
	outcome := "acquired"
	if !ok {
		outcome = "timeout"
		s.log.WithField("lock", name).WithField("timeout", timeout).Warn("lock: timed out on marker")
	}
	s.metrics.ObserveLockAcquire("fallback", outcome, time.Since(started).Seconds())
	return ok, nil
}

func (s *Store) acquireMarker(ctx context.Context, name string, deadline time.Time) (bool, error) {
	for {
		ok, err := s.fallback.TryInsert(ctx, name, s.owner, s.markerTTL)
		if err != nil {
			return false, fmt.Errorf("lock: insert marker %s: %w", name, err)
		}
		if ok {
			return true, nil
		}
		wait := s.retryInterval
		if remaining := time.Until(deadline); remaining <= 0 {
			return false, nil
		} else if remaining < wait {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
}

// Release drops the native lock if this process holds it and deletes the
// fallback marker if this Store wrote it.  A marker that expired and was
// taken over by another owner is left alone.  Releasing a name nobody holds is a no-op
// that reports false.
func (s *Store) Release(ctx context.Context, name string) (bool, error) {
	var released bool
	var errs []error
	if s.native != nil {
		ok, err := s.native.Unlock(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("lock: native release %s: %w", name, err))
		}
		released = released || ok
	}
	if s.fallback != nil {
		ok, err := s.fallback.Delete(ctx, name, s.owner)
		if err != nil {
			errs = append(errs, fmt.Errorf("lock: delete marker %s: %w", name, err))
		}
		released = released || ok
	}
	s.metrics.ObserveLockRelease(released)
	return released, errors.Join(errs...)
}

// WithLock runs fn while holding the named lock.  The lock is released on
// every exit path, including a panic in fn, using a context that outlives
// cancellation of ctx.  If the lock cannot be taken within timeout fn is
// not called and ErrTimeout is returned.
func (s *Store) WithLock(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ok, err := s.Acquire(ctx, name, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTimeout
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if _, err := s.Release(rctx, name); err != nil {
			s.log.WithError(err).WithField("lock", name).Error("lock: release failed")
		}
	}()
	return fn(ctx)
}

// Do is WithLock for bodies that produce a value.
func Do[T any](ctx context.Context, s *Store, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.WithLock(ctx, name, timeout, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
