package model

import "time"

// Booking statuses.  Only StatusCancelled frees capacity; a pending booking
// holds its slot at commit time and, when PendingBlocksAvailability is set,
// in slot listings too.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// ValidStatus reports whether s is one of the known booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Booking is an appointment or reservation of a BookableItem.  Start and
// End are stored in UTC and form the half-open window [Start, End).  The
// window never changes after creation; rescheduling is a new booking plus a
// cancellation.
//
// Fields:
//
//	ID         – primary key identifier.
//	ItemID     – booked item.
//	ResourceID – assigned resource; nil while unassigned.
//	CustomerID – customer who booked.
//	Start, End – UTC window.
//	Status     – one of the Status* constants.
//	Notes      – free text supplied by the customer.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Booking struct {
	ID         uint64    `json:"id"`                    // bookings.id
	ItemID     uint64    `json:"item_id"`               // bookings.item_id
	ResourceID *uint64   `json:"resource_id,omitempty"` // bookings.resource_id (nullable)
	CustomerID uint64    `json:"customer_id"`           // bookings.customer_id
	Start      time.Time `json:"start"`                 // bookings.starts_at
	End        time.Time `json:"end"`                   // bookings.ends_at
	Status     string    `json:"status"`                // bookings.status
	Notes      string    `json:"notes,omitempty"`       // bookings.notes
	CreatedAt  time.Time `json:"created_at"`            // bookings.created_at
	UpdatedAt  time.Time `json:"updated_at"`            // bookings.updated_at
}
