package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/appointment-booking/internal/availability"
	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/lock"
	"github.com/iliyamo/appointment-booking/internal/logging"
	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/repository"
	"github.com/iliyamo/appointment-booking/internal/repository/repotest"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

type fixture struct {
	store *repotest.MemoryStore
	locks *lock.Store
	svc   *BookingService
}

func newFixture(t *testing.T, cfg config.BookingConfig, resources ...model.Resource) *fixture {
	t.Helper()
	store := repotest.NewMemoryStore()
	store.PutItem(model.BookableItem{ID: 1, Name: "Consultation", DurationMinutes: 60, Unit: model.UnitTime})
	for _, r := range resources {
		store.PutResource(r)
	}
	locks := lock.NewStore(lock.NewLocalLocker(), nil, lock.WithLogger(logging.Discard()))
	return &fixture{
		store: store,
		locks: locks,
		svc:   NewBookingService(cfg, store, locks, logging.Discard(), nil),
	}
}

func request(start time.Time, email string) CreateBookingRequest {
	return CreateBookingRequest{
		ItemID:   1,
		Start:    start,
		End:      start.Add(time.Hour),
		Customer: model.Customer{Name: "Customer", Email: email},
	}
}

func roomA() model.Resource { return model.Resource{ID: 1, Name: "Room A", Kind: model.ResourceRoom, Capacity: 1, Active: true} }

func TestCreateBookingAssignsResource(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())

	id, err := f.svc.CreateBooking(context.Background(), request(at(10, 0), "Ada@Example.com"))
	require.NoError(t, err)

	b, err := f.svc.GetBooking(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b.ResourceID)
	assert.Equal(t, uint64(1), *b.ResourceID)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, at(10, 0), b.Start)
}

func TestTwoSimultaneousUnpinnedRequests(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())

	var wg sync.WaitGroup
	ids := make([]uint64, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = f.svc.CreateBooking(context.Background(), request(at(10, 0), fmt.Sprintf("c%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for i := range errs {
		switch {
		case errs[i] == nil:
			ok++
			assert.NotZero(t, ids[i])
		case errors.Is(errs[i], ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestCapacityNAdmitsExactlyN(t *testing.T) {
	const capacity, attempts = 3, 10
	f := newFixture(t, config.DefaultBookingConfig(), model.Resource{ID: 1, Capacity: capacity, Active: true})

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[string]int{}
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateBooking(context.Background(), request(at(14, 0), fmt.Sprintf("c%d@example.com", i)))
			mu.Lock()
			results[KindOf(err)]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, results[""])
	assert.Equal(t, attempts-capacity, results[KindConflict])
	occupied, _ := f.store.OccupiedCountsByResource(context.Background(), at(14, 0), at(15, 0), true)
	assert.Equal(t, capacity, occupied[1])
}

func TestBackToBackBookingsDoNotConflict(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())

	_, err := f.svc.CreateBooking(context.Background(), request(at(10, 0), "a@example.com"))
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(context.Background(), request(at(11, 0), "b@example.com"))
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(context.Background(), request(at(10, 30), "c@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestItemLevelCapacityIsEnforced(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), model.Resource{ID: 1, Capacity: 5, Active: true})
	f.store.PutItem(model.BookableItem{ID: 1, DurationMinutes: 60, MaxCapacity: 2, Unit: model.UnitTime})

	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateBooking(context.Background(), request(at(9, 0), fmt.Sprintf("c%d@example.com", i)))
		require.NoError(t, err)
	}
	_, err := f.svc.CreateBooking(context.Background(), request(at(9, 0), "late@example.com"))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestPinnedResourcesDoNotBlockEachOther(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.LockTimeout = 100 * time.Millisecond
	f := newFixture(t, cfg,
		model.Resource{ID: 1, Capacity: 1, Active: true},
		model.Resource{ID: 2, Capacity: 1, Active: true})

	a, b := uint64(1), uint64(2)
	held := lock.TimeKey(1, at(10, 0), at(11, 0), &a).Name()
	ok, err := f.locks.Acquire(context.Background(), held, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer f.locks.Release(context.Background(), held)

	reqB := request(at(10, 0), "b@example.com")
	reqB.ResourceID = &b
	id, err := f.svc.CreateBooking(context.Background(), reqB)
	require.NoError(t, err)
	got, _ := f.svc.GetBooking(context.Background(), id)
	assert.Equal(t, b, *got.ResourceID)

	reqA := request(at(10, 0), "a@example.com")
	reqA.ResourceID = &a
	_, err = f.svc.CreateBooking(context.Background(), reqA)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestHolidayIsValidationFailure(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.Holidays = map[string]bool{"2026-03-02": true}
	f := newFixture(t, cfg, roomA())

	_, err := f.svc.CreateBooking(context.Background(), request(at(10, 0), "a@example.com"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, availability.RuleHoliday, ve.Failures[0].Rule)
	assert.Empty(t, f.store.Bookings())
}

func TestValidationAggregatesFailures(t *testing.T) {
	cfg := config.DefaultBookingConfig()
	cfg.Holidays = map[string]bool{"2026-03-02": true}
	f := newFixture(t, cfg, roomA())

	req := request(at(10, 0), "a@example.com")
	req.End = at(12, 0)
	_, err := f.svc.CreateBooking(context.Background(), req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	rules := []string{}
	for _, fl := range ve.Failures {
		rules = append(rules, fl.Rule)
	}
	assert.ElementsMatch(t, []string{availability.RuleHoliday, availability.RuleDuration}, rules)
}

func TestUnknownItemAndResource(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())

	req := request(at(10, 0), "a@example.com")
	req.ItemID = 99
	_, err := f.svc.CreateBooking(context.Background(), req)
	assert.Equal(t, KindValidation, KindOf(err))

	ghost := uint64(42)
	req = request(at(10, 0), "a@example.com")
	req.ResourceID = &ghost
	_, err = f.svc.CreateBooking(context.Background(), req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, availability.RuleResource, ve.Failures[0].Rule)
}

func TestStaffBreakBlocksPinnedBooking(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), model.Resource{ID: 7, Kind: model.ResourceStaff, Capacity: 1, Active: true})
	f.store.AddBreak(model.StaffBreak{ResourceID: 7, Start: at(12, 0), End: at(13, 0)})
	staff := uint64(7)

	req := request(at(12, 30), "a@example.com")
	req.ResourceID = &staff
	_, err := f.svc.CreateBooking(context.Background(), req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, availability.RuleBreak, ve.Failures[0].Rule)

	req = request(at(13, 0), "a@example.com")
	req.ResourceID = &staff
	_, err = f.svc.CreateBooking(context.Background(), req)
	assert.NoError(t, err)
}

func TestNoResourcesStillCreatesUnassigned(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig())

	id, err := f.svc.CreateBooking(context.Background(), request(at(10, 0), "a@example.com"))
	require.NoError(t, err)
	b, _ := f.svc.GetBooking(context.Background(), id)
	assert.Nil(t, b.ResourceID)

	_, err = f.svc.CreateBooking(context.Background(), request(at(10, 30), "b@example.com"))
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.svc.CreateBooking(context.Background(), request(at(11, 0), "c@example.com"))
	assert.NoError(t, err)
}

func TestNoResourcesConcurrentRequestsAdmitOne(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateBooking(context.Background(), request(at(10, 0), fmt.Sprintf("c%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.store.Bookings(), 1)
}

func TestPinnedToFullResourceConflicts(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(),
		model.Resource{ID: 1, Capacity: 1, Active: true},
		model.Resource{ID: 2, Capacity: 1, Active: true})
	a := uint64(1)

	first := request(at(10, 0), "a@example.com")
	first.ResourceID = &a
	_, err := f.svc.CreateBooking(context.Background(), first)
	require.NoError(t, err)

	// resource 2 is still free but the request names resource 1
	second := request(at(10, 0), "b@example.com")
	second.ResourceID = &a
	_, err = f.svc.CreateBooking(context.Background(), second)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.store.Bookings(), 1)

	id, err := f.svc.CreateBooking(context.Background(), request(at(10, 0), "c@example.com"))
	require.NoError(t, err)
	b, _ := f.svc.GetBooking(context.Background(), id)
	require.NotNil(t, b.ResourceID)
	assert.Equal(t, uint64(2), *b.ResourceID)
}

func TestCancelFreesCapacity(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())
	ctx := context.Background()

	id, err := f.svc.CreateBooking(ctx, request(at(10, 0), "a@example.com"))
	require.NoError(t, err)

	changed, err := f.svc.CancelBooking(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.svc.CancelBooking(ctx, id)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.svc.CreateBooking(ctx, request(at(10, 0), "b@example.com"))
	assert.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestDayItemUsesDateRangeKey(t *testing.T) {
	f := newFixture(t, config.DefaultBookingConfig(), roomA())
	f.store.PutItem(model.BookableItem{ID: 1, Unit: model.UnitDay})

	req := CreateBookingRequest{
		ItemID:   1,
		Start:    time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 7, 3, 11, 0, 0, 0, time.UTC),
		Customer: model.Customer{Email: "guest@example.com"},
	}
	id, err := f.svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)
	b, _ := f.svc.GetBooking(context.Background(), id)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), b.Start)
	assert.Equal(t, time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), b.End)

	req.Start = time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)
	req.End = time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateBooking(context.Background(), req)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "", KindOf(nil))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrap: %w", ErrConflict)))
	assert.Equal(t, KindLockTimeout, KindOf(ErrLockTimeout))
	assert.Equal(t, KindValidation, KindOf(&ValidationError{}))
	assert.Equal(t, KindFatal, KindOf(errors.New("disk on fire")))
}
