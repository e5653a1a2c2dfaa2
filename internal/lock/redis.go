package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token, so
// a lock that expired and was retaken by someone else is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker provides named locks with SET NX PX.  Every lock carries a
// hold TTL, so a crashed holder blocks others for at most that long.
type RedisLocker struct {
	rdb     *redis.Client
	holdTTL time.Duration
	poll    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker returns a locker over rdb.  A nil client yields a locker
// that reports Unsupported, which sends the Store to its fallback.
func NewRedisLocker(rdb *redis.Client, holdTTL time.Duration) *RedisLocker {
	if holdTTL <= 0 {
		holdTTL = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, holdTTL: holdTTL, poll: 25 * time.Millisecond, tokens: make(map[string]string)}
}

func (l *RedisLocker) Lock(ctx context.Context, name string, timeout time.Duration) (Outcome, error) {
	if l.rdb == nil {
		return Unsupported, nil
	}
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.rdb.SetNX(ctx, name, token, l.holdTTL).Result()
		if err != nil {
			return TimedOut, err
		}
		if ok {
			l.mu.Lock()
			l.tokens[name] = token
			l.mu.Unlock()
			return Acquired, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TimedOut, nil
		}
		wait := min(l.poll, remaining)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return TimedOut, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *RedisLocker) Unlock(ctx context.Context, name string) (bool, error) {
	if l.rdb == nil {
		return false, nil
	}
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return false, nil
	}
	n, err := releaseScript.Run(ctx, l.rdb, []string{name}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
