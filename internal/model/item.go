package model

// Booking units.  A "time" item is booked in minute-precision windows
// inside a business day; a "day" item (a room type, for instance) is booked
// for a check-in/check-out date range.
const (
	UnitTime = "time"
	UnitDay  = "day"
)

// BookableItem is a service or room type that customers can schedule.  It
// is read-only for the duration of a slot computation or booking attempt.
//
// Fields:
//
//	ID                  – primary key identifier.
//	Name                – display name.
//	DurationMinutes     – default (and, without min/max, the only) length.
//	MinDurationMinutes  – optional lower bound on a requested length.
//	MaxDurationMinutes  – optional upper bound on a requested length.
//	BufferBeforeMinutes – padding that must be free before a booking.
//	BufferAfterMinutes  – padding that must be free after a booking.
//	MaxCapacity         – item-level cap on concurrent bookings across all
//	                      resources; 0 means no item-level cap.
//	ResourceIDs         – eligible resources; empty means every active one.
//	Unit                – UnitTime or UnitDay.
type BookableItem struct {
	ID                  uint64   // items.id
	Name                string   // items.name
	DurationMinutes     int      // items.duration_minutes
	MinDurationMinutes  *int     // items.min_duration_minutes (nullable)
	MaxDurationMinutes  *int     // items.max_duration_minutes (nullable)
	BufferBeforeMinutes int      // items.buffer_before_minutes
	BufferAfterMinutes  int      // items.buffer_after_minutes
	MaxCapacity         int      // items.max_capacity
	ResourceIDs         []uint64 // item_resources.resource_id
	Unit                string   // items.unit
}

// IsDateRange reports whether the item is booked by whole days.
func (i BookableItem) IsDateRange() bool { return i.Unit == UnitDay }
