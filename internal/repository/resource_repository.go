package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// ResourceRepo reads resources.  Resources are managed elsewhere; the
// booking flow only needs to look them up.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a new ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// ListEligibleResources returns the active resources linked to the item in
// item_resources or, when the item has no links, every active resource.
// Rows come back ordered by id so resource assignment is deterministic.
func (r *ResourceRepo) ListEligibleResources(ctx context.Context, itemID uint64) ([]model.Resource, error) {
	const q = `SELECT r.id, r.name, r.kind, r.capacity, r.is_active
		FROM resources r
		WHERE r.is_active = 1
		  AND (NOT EXISTS (SELECT 1 FROM item_resources ir WHERE ir.item_id = ?)
		       OR r.id IN (SELECT ir.resource_id FROM item_resources ir WHERE ir.item_id = ?))
		ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, q, itemID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		var res model.Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Kind, &res.Capacity, &res.Active); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// GetResource returns one resource or ErrResourceNotFound.
func (r *ResourceRepo) GetResource(ctx context.Context, id uint64) (*model.Resource, error) {
	var res model.Resource
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, kind, capacity, is_active FROM resources WHERE id = ?`, id,
	).Scan(&res.ID, &res.Name, &res.Kind, &res.Capacity, &res.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}
