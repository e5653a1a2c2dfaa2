package model

// Resource kinds.  The kind only affects presentation; capacity rules are
// identical for all of them.
const (
	ResourceStaff   = "staff"
	ResourceRoom    = "room"
	ResourceGeneric = "generic"
)

// Resource is a concrete bookable unit: a staff member, a room or a seat.
// Capacity is how many bookings it absorbs at the same instant and is
// always at least one.
type Resource struct {
	ID       uint64 // resources.id
	Name     string // resources.name
	Kind     string // resources.kind
	Capacity int    // resources.capacity
	Active   bool   // resources.is_active
}
