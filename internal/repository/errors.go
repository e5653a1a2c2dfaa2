// Package repository is the MySQL persistence layer for items, resources,
// customers, bookings and staff breaks.  The sentinel errors below let the
// service and handler layers tell a missing row from a storage failure.
package repository

import "errors"

// ErrItemNotFound is returned when a bookable item id does not exist.
var ErrItemNotFound = errors.New("item not found")

// ErrBookingNotFound is returned when a booking id does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrResourceNotFound is returned when a resource id does not exist.
var ErrResourceNotFound = errors.New("resource not found")
