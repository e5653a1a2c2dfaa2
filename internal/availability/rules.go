package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/model"
)

// Rule names reported in a Failure.
const (
	RuleItem     = "item"
	RuleWindow   = "window"
	RuleHoliday  = "holiday"
	RuleDuration = "duration"
	RuleCapacity = "capacity"
	RuleBreak    = "break"
	RuleResource = "resource"
)

// Failure is one broken rule with a message fit for the end user.
type Failure struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Report aggregates every failing rule of a validation pass.
type Report struct {
	Valid    bool
	Failures []Failure
}

func (r *Report) fail(rule, format string, args ...any) {
	r.Valid = false
	r.Failures = append(r.Failures, Failure{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether rule is among the failures.
func (r Report) Has(rule string) bool {
	for _, f := range r.Failures {
		if f.Rule == rule {
			return true
		}
	}
	return false
}

// DurationCheck is the result of CheckDurationLimits.  Max of zero means
// no upper bound.
type DurationCheck struct {
	Valid bool
	Min   int
	Max   int
}

// CapacityCheck is the result of CheckCapacity.  Max of zero means the
// item has no item-level cap.
type CapacityCheck struct {
	Available bool
	Current   int
	Max       int
}

// Rules holds the booking predicates.  Apart from CheckCapacity,
// StaffBreaks and ValidateBooking they never touch the store.
type Rules struct {
	cfg   config.BookingConfig
	store Store
}

func NewRules(cfg config.BookingConfig, store Store) *Rules {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Rules{cfg: cfg, store: store}
}

// IsHoliday reports whether the calendar day of date, taken in the
// business timezone, is a configured blackout day.
func (r *Rules) IsHoliday(date time.Time) bool {
	return r.cfg.Holidays[date.In(r.cfg.Location).Format("2006-01-02")]
}

// CheckDurationLimits checks a requested length in minutes.  Without an
// explicit min or max both default to the item's fixed duration; a day item
// defaults to at least one night and no upper bound.
func (r *Rules) CheckDurationLimits(item model.BookableItem, minutes int) DurationCheck {
	lo, hi := item.DurationMinutes, item.DurationMinutes
	if item.IsDateRange() {
		lo, hi = 24*60, 0
	}
	if item.MinDurationMinutes != nil {
		lo = *item.MinDurationMinutes
	}
	if item.MaxDurationMinutes != nil {
		hi = *item.MaxDurationMinutes
	}
	ok := minutes > 0 && minutes >= lo && (hi == 0 || minutes <= hi)
	if item.IsDateRange() && minutes%(24*60) != 0 {
		ok = false
	}
	return DurationCheck{Valid: ok, Min: lo, Max: hi}
}

// CheckCapacity compares the item's non-cancelled bookings overlapping
// [start, end) with its item-level cap.
func (r *Rules) CheckCapacity(ctx context.Context, item model.BookableItem, start, end time.Time) (CapacityCheck, error) {
	n, err := r.store.CountOverlappingBookings(ctx, item.ID, start.UTC(), end.UTC(), []string{model.StatusCancelled})
	if err != nil {
		return CapacityCheck{}, fmt.Errorf("count overlapping bookings: %w", err)
	}
	return CapacityCheck{
		Available: item.MaxCapacity <= 0 || n < item.MaxCapacity,
		Current:   n,
		Max:       item.MaxCapacity,
	}, nil
}

// StaffBreaks lists the breaks of staffID on the business day of date.
func (r *Rules) StaffBreaks(ctx context.Context, staffID uint64, date time.Time) ([]model.StaffBreak, error) {
	from := r.dayStart(date)
	breaks, err := r.store.StaffBreaks(ctx, staffID, from.UTC(), from.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, fmt.Errorf("load staff breaks: %w", err)
	}
	return breaks, nil
}

// ConflictsWithBreak reports whether [start, end) overlaps any break.  A
// window ending exactly when a break starts does not conflict.
func ConflictsWithBreak(start, end time.Time, breaks []model.StaffBreak) bool {
	for _, b := range breaks {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ValidateStatic runs the rules that do not depend on other bookings:
// window, holiday, duration and, when a staff member is pinned, breaks.
func (r *Rules) ValidateStatic(ctx context.Context, item model.BookableItem, start, end time.Time, staffID *uint64) (Report, error) {
	rep := Report{Valid: true}
	if !end.After(start) {
		rep.fail(RuleWindow, "end must be after start")
		return rep, nil
	}
	if day := r.holidayIn(item, start, end); day != "" {
		rep.fail(RuleHoliday, "%s is a holiday", day)
	}
	minutes := int(end.Sub(start) / time.Minute)
	if dc := r.CheckDurationLimits(item, minutes); !dc.Valid {
		rep.fail(RuleDuration, "duration %d min outside allowed range %s", minutes, describeRange(dc))
	}
	if staffID != nil {
		breaks, err := r.store.StaffBreaks(ctx, *staffID, start.UTC(), end.UTC())
		if err != nil {
			return rep, fmt.Errorf("load staff breaks: %w", err)
		}
		if ConflictsWithBreak(start, end, breaks) {
			rep.fail(RuleBreak, "resource %d is on a break during the requested time", *staffID)
		}
	}
	return rep, nil
}

// ValidateBooking runs every rule, including the item-level capacity
// check, and reports all failures together.  It is the gate used at commit
// time.
func (r *Rules) ValidateBooking(ctx context.Context, item model.BookableItem, start, end time.Time, staffID *uint64) (Report, error) {
	rep, err := r.ValidateStatic(ctx, item, start, end, staffID)
	if err != nil || rep.Has(RuleWindow) {
		return rep, err
	}
	cc, err := r.CheckCapacity(ctx, item, start, end)
	if err != nil {
		return rep, err
	}
	if !cc.Available {
		rep.fail(RuleCapacity, "item is fully booked (%d of %d)", cc.Current, cc.Max)
	}
	return rep, nil
}

// holidayIn returns the first holiday touched by the booking.  A time
// booking is checked on its start day; a day booking on every night it
// covers.
func (r *Rules) holidayIn(item model.BookableItem, start, end time.Time) string {
	if !item.IsDateRange() {
		if r.IsHoliday(start) {
			return start.In(r.cfg.Location).Format("2006-01-02")
		}
		return ""
	}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if r.IsHoliday(d) {
			return d.In(r.cfg.Location).Format("2006-01-02")
		}
	}
	return ""
}

func (r *Rules) dayStart(date time.Time) time.Time {
	y, m, d := date.In(r.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.cfg.Location)
}

func describeRange(dc DurationCheck) string {
	if dc.Max == 0 {
		return fmt.Sprintf("[%d, ∞)", dc.Min)
	}
	return fmt.Sprintf("[%d, %d]", dc.Min, dc.Max)
}
