package availability

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/observability/metrics"
)

var engineTracer = otel.Tracer("booking.internal.availability")

// Engine enumerates candidate slots for an item on one business day.  It
// only reads; a slot it reports as free is an offer, and the booking
// service re-checks it under lock.
type Engine struct {
	cfg     config.BookingConfig
	store   Store
	rules   *Rules
	log     logrus.FieldLogger
	metrics *metrics.BookingMetrics
}

// NewEngine returns an engine.  log and m may be nil.
func NewEngine(cfg config.BookingConfig, store Store, log logrus.FieldLogger, m *metrics.BookingMetrics) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, store: store, rules: NewRules(cfg, store), log: log, metrics: m}
}

// ListSlots loads the item and computes its slots for date.
func (e *Engine) ListSlots(ctx context.Context, itemID uint64, date time.Time, stepMinutes int) ([]model.Slot, error) {
	item, err := e.store.FindItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return e.ComputeSlots(ctx, *item, date, stepMinutes)
}

// ComputeSlots walks the business window of date in stepMinutes increments
// and returns every candidate [start, start+duration) that fits, in
// chronological order, annotated with the resources that can still take
// it.  Only the calendar day of date matters.  A step of zero or less uses
// the configured default.  Holidays yield no slots; an item without
// eligible resources yields slots with nothing free.
func (e *Engine) ComputeSlots(ctx context.Context, item model.BookableItem, date time.Time, stepMinutes int) ([]model.Slot, error) {
	ctx, span := engineTracer.Start(ctx, "availability.compute_slots")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("booking.item_id", int64(item.ID)),
		attribute.String("booking.date", date.Format("2006-01-02")),
	)
	started := time.Now()
	defer func() { e.metrics.ObserveSlotComputation(time.Since(started).Seconds()) }()

	slots, err := e.computeSlots(ctx, item, date, stepMinutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute slots failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("booking.slot_count", len(slots)))
	return slots, nil
}

func (e *Engine) computeSlots(ctx context.Context, item model.BookableItem, date time.Time, stepMinutes int) ([]model.Slot, error) {
	loc := e.cfg.Location
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	out := []model.Slot{}
	if e.rules.IsHoliday(day) {
		e.log.WithField("item_id", item.ID).WithField("date", day.Format("2006-01-02")).Debug("availability: holiday, no slots")
		return out, nil
	}

	if stepMinutes <= 0 {
		stepMinutes = e.cfg.SlotStepMinutes
	}
	if stepMinutes <= 0 {
		stepMinutes = 15
	}
	step := time.Duration(stepMinutes) * time.Minute
	length := time.Duration(item.DurationMinutes) * time.Minute
	windowStart := time.Date(y, m, d, 0, e.cfg.DayStartMinute, 0, 0, loc)
	windowEnd := time.Date(y, m, d, 0, e.cfg.DayEndMinute, 0, 0, loc)
	labelFmt := "15:04"
	if item.IsDateRange() {
		// one night starting on date
		windowStart, windowEnd = day, day.AddDate(0, 0, 1)
		length, step = windowEnd.Sub(windowStart), windowEnd.Sub(windowStart)
		labelFmt = "2006-01-02"
	}
	if length <= 0 || windowStart.Add(length).After(windowEnd) {
		return out, nil
	}

	resources, err := e.store.ListEligibleResources(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list eligible resources: %w", err)
	}
	slices.SortFunc(resources, func(a, b model.Resource) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	breaks := make(map[uint64][]model.StaffBreak, len(resources))
	for _, r := range resources {
		bs, err := e.store.StaffBreaks(ctx, r.ID, windowStart.UTC(), windowEnd.UTC())
		if err != nil {
			return nil, fmt.Errorf("load staff breaks: %w", err)
		}
		breaks[r.ID] = bs
	}

	before := time.Duration(item.BufferBeforeMinutes) * time.Minute
	after := time.Duration(item.BufferAfterMinutes) * time.Minute
	for start := windowStart; !start.Add(length).After(windowEnd); start = start.Add(step) {
		end := start.Add(length)
		slot := model.Slot{
			Start:           start.UTC(),
			End:             end.UTC(),
			Label:           start.In(loc).Format(labelFmt) + "-" + end.In(loc).Format(labelFmt),
			FreeResourceIDs: []uint64{},
		}
		itemFull := false
		if item.MaxCapacity > 0 {
			cc, err := e.rules.CheckCapacity(ctx, item, start, end)
			if err != nil {
				return nil, err
			}
			itemFull = !cc.Available
		}
		if !itemFull && len(resources) > 0 {
			occupied, err := e.store.OccupiedCountsByResource(ctx, start.Add(-before).UTC(), end.Add(after).UTC(), e.cfg.PendingBlocksAvailability)
			if err != nil {
				return nil, fmt.Errorf("occupied counts: %w", err)
			}
			for _, r := range resources {
				if occupied[r.ID] >= r.Capacity || ConflictsWithBreak(start, end, breaks[r.ID]) {
					continue
				}
				slot.FreeResourceIDs = append(slot.FreeResourceIDs, r.ID)
			}
		}
		slot.FreeResourcesCount = len(slot.FreeResourceIDs)
		out = append(out, slot)
	}
	return out, nil
}
