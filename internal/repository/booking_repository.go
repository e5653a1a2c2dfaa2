package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// BookingRepo provides the booking queries the availability engine and the
// booking service run.  Windows are half-open: a row overlaps [start, end)
// when starts_at < end AND ends_at > start.  All timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CountOverlappingBookings counts the item's bookings that overlap
// [start, end), skipping any whose status is in excludeStatuses.
func (r *BookingRepo) CountOverlappingBookings(ctx context.Context, itemID uint64, start, end time.Time, excludeStatuses []string) (int, error) {
	q := `SELECT COUNT(*) FROM bookings WHERE item_id = ? AND starts_at < ? AND ends_at > ?`
	args := []interface{}{itemID, end.UTC(), start.UTC()}
	q, args = appendStatusFilter(q, args, excludeStatuses)
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// OccupiedCountsByResource groups the assigned bookings overlapping
// [start, end) by resource.  Cancelled bookings never count; pending ones
// count only when includePending is true.
func (r *BookingRepo) OccupiedCountsByResource(ctx context.Context, start, end time.Time, includePending bool) (map[uint64]int, error) {
	q := `SELECT resource_id, COUNT(*) FROM bookings WHERE resource_id IS NOT NULL AND starts_at < ? AND ends_at > ?`
	args := []interface{}{end.UTC(), start.UTC()}
	exclude := []string{model.StatusCancelled}
	if !includePending {
		exclude = append(exclude, model.StatusPending)
	}
	q, args = appendStatusFilter(q, args, exclude)
	q += ` GROUP BY resource_id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]int)
	for rows.Next() {
		var rid uint64
		var n int
		if err := rows.Scan(&rid, &n); err != nil {
			return nil, err
		}
		out[rid] = n
	}
	return out, rows.Err()
}

// CreateBooking inserts b and returns the generated id.  b.ResourceID may
// be nil; resources are normally attached afterwards with AssignResource.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) (uint64, error) {
	const q = `INSERT INTO bookings (item_id, resource_id, customer_id, starts_at, ends_at, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	var rid sql.NullInt64
	if b.ResourceID != nil {
		rid = sql.NullInt64{Int64: int64(*b.ResourceID), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, b.ItemID, rid, b.CustomerID, b.Start.UTC(), b.End.UTC(), b.Status, b.Notes)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	b.ID = uint64(id)
	return b.ID, nil
}

// AssignResource attaches a resource to a still unassigned booking.  It
// reports false when the booking already has a resource or does not exist.
func (r *BookingRepo) AssignResource(ctx context.Context, bookingID, resourceID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET resource_id = ? WHERE id = ? AND resource_id IS NULL`, resourceID, bookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetBooking returns one booking or ErrBookingNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, item_id, resource_id, customer_id, starts_at, ends_at, status, notes, created_at, updated_at
		FROM bookings WHERE id = ?`
	var b model.Booking
	var rid sql.NullInt64
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.ItemID, &rid, &b.CustomerID, &b.Start, &b.End, &b.Status, &notes, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if rid.Valid {
		v := uint64(rid.Int64)
		b.ResourceID = &v
	}
	b.Notes = notes.String
	return &b, nil
}

// UpdateBookingStatus sets the status of a booking.  MySQL reports zero
// affected rows when the value does not change, so callers should not
// write a status the booking already has.
func (r *BookingRepo) UpdateBookingStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func appendStatusFilter(q string, args []interface{}, exclude []string) (string, []interface{}) {
	if len(exclude) == 0 {
		return q, args
	}
	q += ` AND status NOT IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(exclude)), ", ") + `)`
	for _, s := range exclude {
		args = append(args, s)
	}
	return q, args
}
