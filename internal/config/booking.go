package config

import (
	"log"
	"strings"
	"time"
)

// BookingConfig carries every setting the availability engine, the
// availability rules and the booking orchestrator read.  It is passed to
// those components explicitly so tests can build one per case.
//
// Fields:
//
//	DayStartMinute / DayEndMinute – business window as minutes after local midnight.
//	Location                      – timezone the business window and holidays are expressed in.
//	SlotStepMinutes               – default step used when a caller passes none.
//	PendingBlocksAvailability     – pending bookings count against capacity in slot listings.
//	LockTimeout                   – upper bound on how long a booking request waits for its lock.
//	LockBackend                   – "mysql", "redis" or "local".
//	LockMarkerTTL                 – lifetime of a fallback lock marker row.
//	LockSweepInterval             – how often expired fallback markers are purged.
//	Holidays                      – blackout calendar days, keyed "YYYY-MM-DD".
//	DefaultStatus                 – status assigned to newly created bookings.
type BookingConfig struct {
	DayStartMinute            int
	DayEndMinute              int
	Location                  *time.Location
	SlotStepMinutes           int
	PendingBlocksAvailability bool
	LockTimeout               time.Duration
	LockBackend               string
	LockMarkerTTL             time.Duration
	LockSweepInterval         time.Duration
	Holidays                  map[string]bool
	DefaultStatus             string
}

// DefaultBookingConfig returns the settings used when no environment
// overrides exist: 08:00–20:00 UTC, 15 minute steps, pending bookings
// blocking availability and a three second lock timeout.
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		DayStartMinute:            8 * 60,
		DayEndMinute:              20 * 60,
		Location:                  time.UTC,
		SlotStepMinutes:           15,
		PendingBlocksAvailability: true,
		LockTimeout:               3 * time.Second,
		LockBackend:               "mysql",
		LockMarkerTTL:             30 * time.Second,
		LockSweepInterval:         time.Minute,
		Holidays:                  map[string]bool{},
		DefaultStatus:             "pending",
	}
}

// LoadBookingConfig reads the booking settings from the environment on top
// of DefaultBookingConfig.  Malformed clock values or timezones are fatal
// because a wrong business window silently corrupts every slot listing.
func LoadBookingConfig() BookingConfig {
	cfg := DefaultBookingConfig()
	if v := envStr("BUSINESS_HOURS_START", ""); v != "" {
		cfg.DayStartMinute = mustClock("BUSINESS_HOURS_START", v)
	}
	if v := envStr("BUSINESS_HOURS_END", ""); v != "" {
		cfg.DayEndMinute = mustClock("BUSINESS_HOURS_END", v)
	}
	if tz := envStr("BUSINESS_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid BUSINESS_TIMEZONE %q: %v", tz, err)
		}
		cfg.Location = loc
	}
	cfg.SlotStepMinutes = envInt("SLOT_STEP_MINUTES", cfg.SlotStepMinutes)
	cfg.PendingBlocksAvailability = envBool("PENDING_BLOCKS_AVAILABILITY", cfg.PendingBlocksAvailability)
	cfg.LockTimeout = envDur("LOCK_TIMEOUT", cfg.LockTimeout)
	cfg.LockBackend = strings.ToLower(envStr("LOCK_BACKEND", cfg.LockBackend))
	cfg.LockMarkerTTL = envDur("LOCK_MARKER_TTL", cfg.LockMarkerTTL)
	cfg.LockSweepInterval = envDur("LOCK_SWEEP_INTERVAL", cfg.LockSweepInterval)
	cfg.Holidays = ParseHolidays(envStr("HOLIDAYS", ""))
	cfg.DefaultStatus = strings.ToLower(envStr("DEFAULT_BOOKING_STATUS", cfg.DefaultStatus))

	if cfg.DayEndMinute <= cfg.DayStartMinute {
		log.Fatalf("business hours end (%d) must be after start (%d)", cfg.DayEndMinute, cfg.DayStartMinute)
	}
	if cfg.SlotStepMinutes < 1 {
		cfg.SlotStepMinutes = 15
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 3 * time.Second
	}
	if cfg.LockMarkerTTL < cfg.LockTimeout {
		cfg.LockMarkerTTL = 10 * cfg.LockTimeout
	}
	return cfg
}

// ParseHolidays splits a comma separated list of YYYY-MM-DD dates into a
// set.  Entries that do not parse are skipped.
func ParseHolidays(s string) map[string]bool {
	out := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", p); err != nil {
			log.Printf("config: ignoring malformed holiday %q", p)
			continue
		}
		out[p] = true
	}
	return out
}

// ParseClock converts "HH:MM" into minutes after midnight.  "24:00" is
// accepted as the end of the day.
func ParseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if strings.TrimSpace(s) == "24:00" {
			return 24 * 60, true
		}
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func mustClock(key, v string) int {
	m, ok := ParseClock(v)
	if !ok {
		log.Fatalf("invalid clock for %s: %q", key, v)
	}
	return m
}
