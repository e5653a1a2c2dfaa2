// Package queue carries post-commit booking events over RabbitMQ.  The
// booking service never talks to the broker; the HTTP layer publishes after
// a booking is committed and a consumer turns events into side effects.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/appointment-booking/internal/model"
)

// BookingCreatedQueue is the durable queue booking.created events go to.
const BookingCreatedQueue = "booking.created"

// BookingCreatedEvent is published once a booking has been committed.  It
// holds enough for consumers to log or notify without reading the
// database.
type BookingCreatedEvent struct {
	EventID     string  `json:"event_id"`
	BookingID   uint64  `json:"booking_id"`
	ItemID      uint64  `json:"item_id"`
	ResourceID  *uint64 `json:"resource_id,omitempty"`
	CustomerID  uint64  `json:"customer_id"`
	Email       string  `json:"email"`
	Status      string  `json:"status"`
	StartsAt    string  `json:"starts_at"`
	EndsAt      string  `json:"ends_at"`
	CommittedAt string  `json:"committed_at"`
}

// NewBookingCreatedEvent builds the event for b.  Timestamps are RFC 3339
// in UTC.
func NewBookingCreatedEvent(b model.Booking, email string) BookingCreatedEvent {
	return BookingCreatedEvent{
		EventID:     uuid.NewString(),
		BookingID:   b.ID,
		ItemID:      b.ItemID,
		ResourceID:  b.ResourceID,
		CustomerID:  b.CustomerID,
		Email:       email,
		Status:      b.Status,
		StartsAt:    b.Start.UTC().Format(time.RFC3339),
		EndsAt:      b.End.UTC().Format(time.RFC3339),
		CommittedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
