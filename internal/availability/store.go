// Package availability computes bookable slots and holds the rules a
// booking must satisfy before it is written.  Both read the shared store
// through Store and take their settings from an injected
// config.BookingConfig.
package availability

import (
	"context"
	"time"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// Store is the read side of the persistence layer used by the engine and
// the rules.  All windows are half-open [start, end) in UTC.
type Store interface {
	// FindItem returns repository.ErrItemNotFound for unknown ids.
	FindItem(ctx context.Context, id uint64) (*model.BookableItem, error)
	// ListEligibleResources returns the active resources the item may use,
	// ordered by ascending id.
	ListEligibleResources(ctx context.Context, itemID uint64) ([]model.Resource, error)
	// CountOverlappingBookings counts bookings of the item overlapping the
	// window whose status is not in excludeStatuses.
	CountOverlappingBookings(ctx context.Context, itemID uint64, start, end time.Time, excludeStatuses []string) (int, error)
	// OccupiedCountsByResource maps resource id to the number of assigned,
	// non-cancelled bookings overlapping the window.  Pending bookings are
	// counted only when includePending is set.
	OccupiedCountsByResource(ctx context.Context, start, end time.Time, includePending bool) (map[uint64]int, error)
	// StaffBreaks lists the breaks of one resource overlapping the window.
	StaffBreaks(ctx context.Context, resourceID uint64, start, end time.Time) ([]model.StaffBreak, error)
}
