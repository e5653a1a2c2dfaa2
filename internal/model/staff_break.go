package model

import "time"

// StaffBreak is a period during which a staff resource cannot take
// bookings.  Start and End are absolute UTC instants.
type StaffBreak struct {
	ResourceID uint64    // staff_breaks.resource_id
	Start      time.Time // staff_breaks.starts_at
	End        time.Time // staff_breaks.ends_at
}
