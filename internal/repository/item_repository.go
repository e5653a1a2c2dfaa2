package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// ItemRepo reads bookable items and their eligible resource lists.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// FindItem loads one item together with its item_resources rows.  It
// returns ErrItemNotFound when no row matches.
func (r *ItemRepo) FindItem(ctx context.Context, id uint64) (*model.BookableItem, error) {
	const q = `SELECT id, name, duration_minutes, min_duration_minutes, max_duration_minutes,
		buffer_before_minutes, buffer_after_minutes, max_capacity, unit
		FROM items WHERE id = ?`
	var it model.BookableItem
	var minD, maxD sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&it.ID, &it.Name, &it.DurationMinutes, &minD, &maxD,
		&it.BufferBeforeMinutes, &it.BufferAfterMinutes, &it.MaxCapacity, &it.Unit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if minD.Valid {
		v := int(minD.Int64)
		it.MinDurationMinutes = &v
	}
	if maxD.Valid {
		v := int(maxD.Int64)
		it.MaxDurationMinutes = &v
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT resource_id FROM item_resources WHERE item_id = ? ORDER BY resource_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rid uint64
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		it.ResourceIDs = append(it.ResourceIDs, rid)
	}
	return &it, rows.Err()
}
