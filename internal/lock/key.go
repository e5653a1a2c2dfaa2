package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// NamePrefix namespaces every lock name this service takes, both in MySQL's
// user-level lock table and in the fallback marker table.
const NamePrefix = "bkl_"

// Key identifies the critical section of one booking attempt.  A pinned
// ResourceID narrows the section so that requests for different resources
// at the same time do not serialize; without it every request for the
// item and window shares one section.
type Key struct {
	ItemID     uint64
	Start      time.Time
	End        time.Time
	ResourceID *uint64
	DateRange  bool
}

// TimeKey builds the key for a minute-precision booking window.  Both ends
// are normalized to UTC and truncated to the minute so that equal instants
// expressed in different zones produce the same name.
func TimeKey(itemID uint64, start, end time.Time, resourceID *uint64) Key {
	return Key{
		ItemID:     itemID,
		Start:      start.UTC().Truncate(time.Minute),
		End:        end.UTC().Truncate(time.Minute),
		ResourceID: resourceID,
	}
}

// DateRangeKey builds the key for a check-in/check-out booking.  Only the
// calendar dates (in the zone of the supplied times) participate.
func DateRangeKey(itemID uint64, checkIn, checkOut time.Time, resourceID *uint64) Key {
	return Key{
		ItemID:     itemID,
		Start:      calendarDate(checkIn),
		End:        calendarDate(checkOut),
		ResourceID: resourceID,
		DateRange:  true,
	}
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// String is the canonical, human readable encoding that Name hashes.
func (k Key) String() string {
	var b strings.Builder
	if k.DateRange {
		b.WriteString("range|item=")
		b.WriteString(strconv.FormatUint(k.ItemID, 10))
		b.WriteString("|in=")
		b.WriteString(k.Start.Format("2006-01-02"))
		b.WriteString("|out=")
		b.WriteString(k.End.Format("2006-01-02"))
	} else {
		b.WriteString("time|item=")
		b.WriteString(strconv.FormatUint(k.ItemID, 10))
		b.WriteString("|start=")
		b.WriteString(k.Start.UTC().Format(time.RFC3339))
		b.WriteString("|end=")
		b.WriteString(k.End.UTC().Format(time.RFC3339))
	}
	b.WriteString("|res=")
	if k.ResourceID != nil {
		b.WriteString(strconv.FormatUint(*k.ResourceID, 10))
	} else {
		b.WriteString("-")
	}
	return b.String()
}

// Name returns the backend lock name: NamePrefix followed by the first 128
// bits of the SHA-256 of String, hex encoded.  The result is 36 characters,
// inside MySQL's 64 character GET_LOCK limit.
func (k Key) Name() string {
	sum := sha256.Sum256([]byte(k.String()))
	return NamePrefix + hex.EncodeToString(sum[:16])
}
