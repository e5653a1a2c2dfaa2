package service

import (
	"errors"
	"strings"

	"github.com/iliyamo/appointment-booking/internal/availability"
)

// ErrLockTimeout means another request held the booking lock for the whole
// wait.  Nothing was written and the caller may retry at once.
var ErrLockTimeout = errors.New("system is busy, please try again")

// ErrConflict means the lock was taken but the requested window had been
// filled in the meantime.  The caller has to pick another slot.
var ErrConflict = errors.New("that slot was just taken")

// ValidationError carries every rule a request broke.  It is returned
// before anything is written.
type ValidationError struct {
	Failures []availability.Failure
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Rule+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Kinds returned by KindOf.
const (
	KindConflict    = "conflict"
	KindLockTimeout = "lock_timeout"
	KindValidation  = "validation"
	KindFatal       = "fatal"
)

// KindOf classifies an error returned by CreateBooking.  A nil error has
// no kind.
func KindOf(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrLockTimeout):
		return KindLockTimeout
	case errors.As(err, &ve):
		return KindValidation
	}
	return KindFatal
}
