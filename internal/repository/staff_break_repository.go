package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// StaffBreakRepo reads the staff_breaks table.
type StaffBreakRepo struct {
	db *sql.DB
}

// NewStaffBreakRepo returns a new StaffBreakRepo bound to the given database.
func NewStaffBreakRepo(db *sql.DB) *StaffBreakRepo { return &StaffBreakRepo{db: db} }

// StaffBreaks lists the breaks of one resource overlapping [start, end),
// earliest first.
func (r *StaffBreakRepo) StaffBreaks(ctx context.Context, resourceID uint64, start, end time.Time) ([]model.StaffBreak, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT resource_id, starts_at, ends_at FROM staff_breaks
		 WHERE resource_id = ? AND starts_at < ? AND ends_at > ? ORDER BY starts_at`,
		resourceID, end.UTC(), start.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StaffBreak
	for rows.Next() {
		var b model.StaffBreak
		if err := rows.Scan(&b.ResourceID, &b.Start, &b.End); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
