package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers that mean the server cannot give us user-level
// locks: the function is missing (1305), execution is denied (1370), or the
// dialect does not parse it (1064, seen on some MySQL-compatible proxies).
var unsupportedCodes = map[uint16]bool{1064: true, 1305: true, 1370: true}

// MySQLLocker takes MySQL user-level locks with GET_LOCK.  Those locks
// belong to a session, so every held lock pins one pooled connection until
// it is released.
type MySQLLocker struct {
	db   *sql.DB
	mu   sync.Mutex
	held map[string]*sql.Conn
}

// NewMySQLLocker returns a locker over db.
func NewMySQLLocker(db *sql.DB) *MySQLLocker {
	return &MySQLLocker{db: db, held: make(map[string]*sql.Conn)}
}

// Lock runs GET_LOCK(name, seconds) on a dedicated connection.  The timeout
// is rounded up to whole seconds.  A NULL result or an error code from
// unsupportedCodes reports Unsupported.
func (l *MySQLLocker) Lock(ctx context.Context, name string, timeout time.Duration) (Outcome, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return TimedOut, fmt.Errorf("mysql lock: get connection: %w", err)
	}
	secs := int64(math.Ceil(timeout.Seconds()))
	if secs < 0 {
		secs = 0
	}
	var got sql.NullInt64
	err = conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, secs).Scan(&got)
	if err != nil {
		_ = conn.Close()
		if isUnsupported(err) {
			return Unsupported, nil
		}
		return TimedOut, err
	}
	if !got.Valid {
		_ = conn.Close()
		return Unsupported, nil
	}
	if got.Int64 != 1 {
		_ = conn.Close()
		return TimedOut, nil
	}
	l.mu.Lock()
	l.held[name] = conn
	l.mu.Unlock()
	return Acquired, nil
}

// Unlock runs RELEASE_LOCK on the connection that took the lock and returns
// it to the pool.  If the release statement fails the connection is
// discarded instead, so a session still owning the lock never goes back
// into the pool.
func (l *MySQLLocker) Unlock(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	conn, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()
	if !ok {
		return false, nil
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT RELEASE_LOCK(?)`, name).Scan(&got); err != nil {
		discard(conn)
		return false, err
	}
	_ = conn.Close()
	return got.Valid && got.Int64 == 1, nil
}

// Held reports how many locks this process currently holds.
func (l *MySQLLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func isUnsupported(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && unsupportedCodes[me.Number]
}
