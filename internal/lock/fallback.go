package lock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// SQLFallback keeps lock markers in the booking_locks table.  The primary
// key on name makes the INSERT an atomic add-if-absent; expires_at bounds
// how long a marker left behind by a crashed process can block others.
type SQLFallback struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLFallback(db *sql.DB) *SQLFallback {
	return &SQLFallback{db: db, now: time.Now}
}

// TryInsert clears an expired marker for name, then tries to insert a fresh
// one.  It reports false when a live marker already exists.
func (f *SQLFallback) TryInsert(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := f.now().UTC()
	if _, err := f.db.ExecContext(ctx,
		`DELETE FROM booking_locks WHERE name = ? AND expires_at <= ?`, name, now); err != nil {
		return false, err
	}
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO booking_locks (name, owner, expires_at) VALUES (?, ?, ?)`, name, owner, now.Add(ttl))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the marker for name if owner wrote it.  Expired markers of
// other owners are left to TryInsert and Sweep.
func (f *SQLFallback) Delete(ctx context.Context, name, owner string) (bool, error) {
	res, err := f.db.ExecContext(ctx, `DELETE FROM booking_locks WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Sweep removes every expired marker and returns how many were removed.
func (f *SQLFallback) Sweep(ctx context.Context) (int64, error) {
	res, err := f.db.ExecContext(ctx, `DELETE FROM booking_locks WHERE expires_at <= ?`, f.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
