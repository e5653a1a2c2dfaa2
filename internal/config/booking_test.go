package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := map[string]int{"08:00": 480, "20:00": 1200, " 09:30 ": 570, "24:00": 1440}
	for in, want := range cases {
		got, ok := ParseClock(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseClock("8am")
	assert.False(t, ok)
}

func TestParseHolidaysSkipsMalformed(t *testing.T) {
	got := ParseHolidays("2026-12-25, 2026-01-01,,not-a-date")
	assert.Equal(t, map[string]bool{"2026-12-25": true, "2026-01-01": true}, got)
}

func TestLoadBookingConfigDefaults(t *testing.T) {
	t.Setenv("BUSINESS_HOURS_START", "")
	t.Setenv("LOCK_TIMEOUT", "")
	cfg := LoadBookingConfig()
	assert.Equal(t, 480, cfg.DayStartMinute)
	assert.Equal(t, 1200, cfg.DayEndMinute)
	assert.Equal(t, 15, cfg.SlotStepMinutes)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.True(t, cfg.PendingBlocksAvailability)
	assert.Equal(t, "pending", cfg.DefaultStatus)
}

func TestLoadBookingConfigOverrides(t *testing.T) {
	t.Setenv("BUSINESS_HOURS_START", "09:00")
	t.Setenv("BUSINESS_HOURS_END", "17:30")
	t.Setenv("BUSINESS_TIMEZONE", "Europe/Berlin")
	t.Setenv("PENDING_BLOCKS_AVAILABILITY", "false")
	t.Setenv("LOCK_TIMEOUT", "2s")
	t.Setenv("LOCK_MARKER_TTL", "1s")
	t.Setenv("LOCK_BACKEND", "Redis")
	t.Setenv("HOLIDAYS", "2026-12-25")

	cfg := LoadBookingConfig()
	assert.Equal(t, 540, cfg.DayStartMinute)
	assert.Equal(t, 1050, cfg.DayEndMinute)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.False(t, cfg.PendingBlocksAvailability)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	// a marker shorter than the lock timeout is stretched
	assert.Equal(t, 20*time.Second, cfg.LockMarkerTTL)
	assert.Equal(t, "redis", cfg.LockBackend)
	assert.True(t, cfg.Holidays["2026-12-25"])
}
