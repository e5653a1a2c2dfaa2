package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/logging"
	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/repository"
	"github.com/iliyamo/appointment-booking/internal/repository/repotest"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func roomStore() *repotest.MemoryStore {
	s := repotest.NewMemoryStore()
	s.PutItem(model.BookableItem{ID: 1, Name: "Consultation", DurationMinutes: 60, Unit: model.UnitTime})
	s.PutResource(model.Resource{ID: 1, Name: "Room A", Kind: model.ResourceRoom, Capacity: 1, Active: true})
	return s
}

func newEngine(cfg config.BookingConfig, s Store) *Engine {
	return NewEngine(cfg, s, logging.Discard(), nil)
}

func TestListSlotsBusinessDay(t *testing.T) {
	e := newEngine(config.DefaultBookingConfig(), roomStore())

	slots, err := e.ListSlots(context.Background(), 1, monday, 15)
	require.NoError(t, err)
	// 08:00 through 19:00 inclusive in 15 minute steps
	require.Len(t, slots, 45)
	assert.Equal(t, at(8, 0), slots[0].Start)
	assert.Equal(t, at(19, 0), slots[len(slots)-1].Start)
	assert.Equal(t, at(20, 0), slots[len(slots)-1].End)
	assert.Equal(t, "08:00-09:00", slots[0].Label)
	for _, s := range slots {
		assert.Equal(t, 1, s.FreeResourcesCount, s.Label)
		assert.Equal(t, []uint64{1}, s.FreeResourceIDs)
	}
}

func TestListSlotsAfterBooking(t *testing.T) {
	store := roomStore()
	rid := uint64(1)
	_, err := store.CreateBooking(context.Background(), &model.Booking{
		ItemID: 1, ResourceID: &rid, Start: at(10, 0), End: at(11, 0), Status: model.StatusPending,
	})
	require.NoError(t, err)
	e := newEngine(config.DefaultBookingConfig(), store)

	slots, err := e.ListSlots(context.Background(), 1, monday, 15)
	require.NoError(t, err)
	for _, s := range slots {
		blocked := s.Start.After(at(9, 0)) && s.Start.Before(at(11, 0))
		if blocked {
			assert.True(t, s.IsFull(), s.Label)
		} else {
			assert.Equal(t, 1, s.FreeResourcesCount, s.Label)
		}
	}
	// 09:15 .. 10:45
	full := 0
	for _, s := range slots {
		if s.IsFull() {
			full++
		}
	}
	assert.Equal(t, 7, full)
}

func TestPendingBookingsCanBeIgnored(t *testing.T) {
	store := roomStore()
	rid := uint64(1)
	_, _ = store.CreateBooking(context.Background(), &model.Booking{
		ItemID: 1, ResourceID: &rid, Start: at(10, 0), End: at(11, 0), Status: model.StatusPending,
	})
	cfg := config.DefaultBookingConfig()
	cfg.PendingBlocksAvailability = false

	slots, err := newEngine(cfg, store).ListSlots(context.Background(), 1, monday, 60)
	require.NoError(t, err)
	for _, s := range slots {
		assert.Equal(t, 1, s.FreeResourcesCount)
	}
}

func TestListSlotsIsDeterministic(t *testing.T) {
	store := roomStore()
	store.PutResource(model.Resource{ID: 2, Capacity: 2, Active: true})
	e := newEngine(config.DefaultBookingConfig(), store)

	a, err := e.ListSlots(context.Background(), 1, monday, 30)
	require.NoError(t, err)
	b, err := e.ListSlots(context.Background(), 1, monday, 30)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestZeroResourcesStillEmitsSlots(t *testing.T) {
	store := repotest.NewMemoryStore()
	store.PutItem(model.BookableItem{ID: 1, DurationMinutes: 60, Unit: model.UnitTime})

	slots, err := newEngine(config.DefaultBookingConfig(), store).ListSlots(context.Background(), 1, monday, 60)
	require.NoError(t, err)
	require.Len(t, slots, 12)
	for _, s := range slots {
		assert.True(t, s.IsFull())
		assert.Empty(t, s.FreeResourceIDs)
	}
}

func TestDurationLongerThanWindow(t *testing.T) {
	store := roomStore()
	store.PutItem(model.BookableItem{ID: 1, DurationMinutes: 13 * 60, Unit: model.UnitTime})

	slots, err := newEngine(config.DefaultBookingConfig(), store).ListSlots(context.Background(), 1, monday, 15)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestHolidayHasNoSlots(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.Holidays = map[string]bool{"2026-03-02": true}

	slots, err := newEngine(cfg, roomStore()).ListSlots(context.Background(), 1, monday, 15)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestBuffersWidenOccupancy(t *testing.T) {
	store := roomStore()
	store.PutItem(model.BookableItem{ID: 1, DurationMinutes: 60, BufferAfterMinutes: 15, Unit: model.UnitTime})
	rid := uint64(1)
	_, _ = store.CreateBooking(context.Background(), &model.Booking{
		ItemID: 1, ResourceID: &rid, Start: at(10, 0), End: at(11, 0), Status: model.StatusConfirmed,
	})

	slots, err := newEngine(config.DefaultBookingConfig(), store).ListSlots(context.Background(), 1, monday, 60)
	require.NoError(t, err)
	// 09:00-10:00 plus its 15 minute tail reaches into the booking
	assert.True(t, slots[1].IsFull(), slots[1].Label)
	assert.True(t, slots[2].IsFull(), slots[2].Label)
	assert.False(t, slots[3].IsFull(), slots[3].Label)
}

func TestStaffBreakMakesResourceBusy(t *testing.T) {
	store := roomStore()
	store.AddBreak(model.StaffBreak{ResourceID: 1, Start: at(12, 0), End: at(13, 0)})

	slots, err := newEngine(config.DefaultBookingConfig(), store).ListSlots(context.Background(), 1, monday, 60)
	require.NoError(t, err)
	byLabel := map[string]int{}
	for _, s := range slots {
		byLabel[s.Label] = s.FreeResourcesCount
	}
	assert.Equal(t, 1, byLabel["11:00-12:00"])
	assert.Equal(t, 0, byLabel["12:00-13:00"])
	assert.Equal(t, 1, byLabel["13:00-14:00"])
}

func TestBusinessTimezone(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	cfg.Location = loc

	slots, err := newEngine(cfg, roomStore()).ListSlots(context.Background(), 1, monday, 60)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	// CET is UTC+1 in March before the DST switch
	assert.Equal(t, at(7, 0), slots[0].Start)
	assert.Equal(t, "08:00-09:00", slots[0].Label)
}

func TestDefaultStep(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.SlotStepMinutes = 30
	slots, err := newEngine(cfg, roomStore()).ListSlots(context.Background(), 1, monday, 0)
	require.NoError(t, err)
	assert.Len(t, slots, 23)
}

func TestUnknownItem(t *testing.T) {
	_, err := newEngine(config.DefaultBookingConfig(), roomStore()).ListSlots(context.Background(), 9, monday, 15)
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
}
