// Package service holds the booking orchestration: it takes the named lock
// for a requested window, re-checks capacity against fresh state, writes
// the booking and assigns a resource.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/appointment-booking/internal/availability"
	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/lock"
	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/observability/metrics"
	"github.com/iliyamo/appointment-booking/internal/repository"
)

var bookingTracer = otel.Tracer("booking.internal.service")

// Store is the persistence collaborator of the booking service.
type Store interface {
	availability.Store
	GetResource(ctx context.Context, id uint64) (*model.Resource, error)
	CreateBooking(ctx context.Context, b *model.Booking) (uint64, error)
	UpsertCustomer(ctx context.Context, c model.Customer) (uint64, error)
	AssignResource(ctx context.Context, bookingID, resourceID uint64) (bool, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status string) error
}

// CreateBookingRequest is one booking attempt.  For a day item Start and
// End are the check-in and check-out dates; only their calendar day in the
// business timezone is used.
type CreateBookingRequest struct {
	ItemID     uint64
	Start      time.Time
	End        time.Time
	Customer   model.Customer
	ResourceID *uint64
	Notes      string
}

// BookingService creates, reads and cancels bookings.
type BookingService struct {
	cfg     config.BookingConfig
	store   Store
	locks   *lock.Store
	rules   *availability.Rules
	log     logrus.FieldLogger
	metrics *metrics.BookingMetrics
}

// NewBookingService wires the service.  log and m may be nil.
func NewBookingService(cfg config.BookingConfig, store Store, locks *lock.Store, log logrus.FieldLogger, m *metrics.BookingMetrics) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultStatus == "" || !model.ValidStatus(cfg.DefaultStatus) {
		cfg.DefaultStatus = model.StatusPending
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingService{
		cfg:     cfg,
		store:   store,
		locks:   locks,
		rules:   availability.NewRules(cfg, store),
		log:     log,
		metrics: m,
	}
}

// CreateBooking runs one booking attempt and returns the new booking id.
// Errors are ErrLockTimeout, ErrConflict, *ValidationError or a wrapped
// storage failure; KindOf tells them apart.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (uint64, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.item_id", int64(req.ItemID)))

	id, err := s.createBooking(ctx, span, req)
	kind := KindOf(err)
	if kind == "" {
		kind = "created"
	}
	s.metrics.ObserveBooking(kind)
	span.SetAttributes(attribute.String("booking.result", kind))

	entry := s.log.WithField("item_id", req.ItemID).WithField("start", req.Start.UTC().Format(time.RFC3339))
	switch kind {
	case "created":
		entry.WithField("booking_id", id).Info("booking created")
	case KindConflict:
		entry.Info("booking rejected: slot taken")
	case KindLockTimeout:
		entry.Warn("booking rejected: lock timeout")
	case KindValidation:
		entry.WithError(err).Info("booking rejected: validation")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "create booking failed")
		entry.WithError(err).Error("booking failed")
	}
	return id, err
}

func (s *BookingService) createBooking(ctx context.Context, span trace.Span, req CreateBookingRequest) (uint64, error) {
	item, err := s.store.FindItem(ctx, req.ItemID)
	if errors.Is(err, repository.ErrItemNotFound) {
		return 0, &ValidationError{Failures: []availability.Failure{{Rule: availability.RuleItem, Message: fmt.Sprintf("item %d does not exist", req.ItemID)}}}
	}
	if err != nil {
		return 0, fmt.Errorf("load item %d: %w", req.ItemID, err)
	}

	start, end, key := s.normalize(*item, req)
	span.SetAttributes(attribute.String("booking.lock", key.Name()))

	rep, err := s.rules.ValidateStatic(ctx, *item, start, end, req.ResourceID)
	if err != nil {
		return 0, fmt.Errorf("validate booking: %w", err)
	}
	if req.ResourceID != nil {
		if err := s.checkPinned(ctx, *item, *req.ResourceID, &rep); err != nil {
			return 0, err
		}
	}
	if !rep.Valid {
		return 0, &ValidationError{Failures: rep.Failures}
	}

	id, err := lock.Do(ctx, s.locks, key.Name(), s.cfg.LockTimeout, func(ctx context.Context) (uint64, error) {
		return s.commit(ctx, *item, start, end, req)
	})
	if errors.Is(err, lock.ErrTimeout) {
		return 0, ErrLockTimeout
	}
	return id, err
}

// normalize truncates a time booking to the minute in UTC and a day
// booking to midnight of its business-timezone dates, and derives the lock
// key from the result.
func (s *BookingService) normalize(item model.BookableItem, req CreateBookingRequest) (time.Time, time.Time, lock.Key) {
	if item.IsDateRange() {
		in, out := s.midnight(req.Start), s.midnight(req.End)
		return in.UTC(), out.UTC(), lock.DateRangeKey(item.ID, in, out, req.ResourceID)
	}
	start := req.Start.UTC().Truncate(time.Minute)
	end := req.End.UTC().Truncate(time.Minute)
	return start, end, lock.TimeKey(item.ID, start, end, req.ResourceID)
}

func (s *BookingService) midnight(t time.Time) time.Time {
	y, m, d := t.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

func (s *BookingService) checkPinned(ctx context.Context, item model.BookableItem, resourceID uint64, rep *availability.Report) error {
	res, err := s.store.GetResource(ctx, resourceID)
	if errors.Is(err, repository.ErrResourceNotFound) {
		rep.Valid = false
		rep.Failures = append(rep.Failures, availability.Failure{Rule: availability.RuleResource, Message: fmt.Sprintf("resource %d does not exist", resourceID)})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load resource %d: %w", resourceID, err)
	}
	eligible := len(item.ResourceIDs) == 0
	for _, id := range item.ResourceIDs {
		if id == res.ID {
			eligible = true
		}
	}
	if !res.Active || !eligible {
		rep.Valid = false
		rep.Failures = append(rep.Failures, availability.Failure{Rule: availability.RuleResource, Message: fmt.Sprintf("resource %d cannot take this item", resourceID)})
	}
	return nil
}

// commit is the critical section.  Every read here is fresh; the slot list
// the customer picked from may be stale.
func (s *BookingService) commit(ctx context.Context, item model.BookableItem, start, end time.Time, req CreateBookingRequest) (uint64, error) {
	free, err := s.freeResources(ctx, item, start, end)
	if err != nil {
		return 0, err
	}
	limit := item.MaxCapacity
	if free == nil && limit < 1 {
		// nothing else bounds an item without resources
		limit = 1
	}
	if limit > 0 {
		n, err := s.store.CountOverlappingBookings(ctx, item.ID, start, end, []string{model.StatusCancelled})
		if err != nil {
			return 0, fmt.Errorf("count overlapping bookings: %w", err)
		}
		if n >= limit {
			return 0, ErrConflict
		}
	}
	if free != nil && len(free) == 0 {
		return 0, ErrConflict
	}
	// a pinned request only ever takes its own resource; its key does not
	// cover any other one
	if free != nil && req.ResourceID != nil && !slices.Contains(free, *req.ResourceID) {
		return 0, ErrConflict
	}

	rep, err := s.rules.ValidateBooking(ctx, item, start, end, req.ResourceID)
	if err != nil {
		return 0, fmt.Errorf("validate booking: %w", err)
	}
	if !rep.Valid {
		return 0, &ValidationError{Failures: rep.Failures}
	}

	cust := req.Customer
	cust.Email = strings.ToLower(strings.TrimSpace(cust.Email))
	customerID, err := s.store.UpsertCustomer(ctx, cust)
	if err != nil {
		return 0, fmt.Errorf("upsert customer: %w", err)
	}
	b := &model.Booking{
		ItemID:     item.ID,
		CustomerID: customerID,
		Start:      start,
		End:        end,
		Status:     s.cfg.DefaultStatus,
		Notes:      req.Notes,
	}
	id, err := s.store.CreateBooking(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("create booking: %w", err)
	}

	if pick, ok := pickResource(free, req.ResourceID); ok {
		assigned, err := s.store.AssignResource(ctx, id, pick)
		switch {
		case err != nil:
			// the booking stands without a resource
			s.log.WithError(err).WithField("booking_id", id).Error("assign resource failed")
		case !assigned:
			s.log.WithField("booking_id", id).WithField("resource_id", pick).Warn("resource assignment refused")
		}
	}
	return id, nil
}

// freeResources returns the ids of eligible resources with capacity left
// over [start-bufferBefore, end+bufferAfter), ordered by id.  Pending
// bookings always count here.  A nil result means the item has no
// eligible resources at all.
func (s *BookingService) freeResources(ctx context.Context, item model.BookableItem, start, end time.Time) ([]uint64, error) {
	resources, err := s.store.ListEligibleResources(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list eligible resources: %w", err)
	}
	if len(resources) == 0 {
		return nil, nil
	}
	from := start.Add(-time.Duration(item.BufferBeforeMinutes) * time.Minute)
	to := end.Add(time.Duration(item.BufferAfterMinutes) * time.Minute)
	occupied, err := s.store.OccupiedCountsByResource(ctx, from, to, true)
	if err != nil {
		return nil, fmt.Errorf("occupied counts: %w", err)
	}
	free := make([]uint64, 0, len(resources))
	for _, r := range resources {
		if occupied[r.ID] >= r.Capacity {
			continue
		}
		bs, err := s.store.StaffBreaks(ctx, r.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load staff breaks: %w", err)
		}
		if availability.ConflictsWithBreak(start, end, bs) {
			continue
		}
		free = append(free, r.ID)
	}
	return free, nil
}

// pickResource returns the pinned resource, or the lowest free id when
// nothing is pinned.
func pickResource(free []uint64, pinned *uint64) (uint64, bool) {
	if pinned != nil {
		return *pinned, slices.Contains(free, *pinned)
	}
	if len(free) == 0 {
		return 0, false
	}
	return free[0], true
}

// GetBooking returns one booking.
func (s *BookingService) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// CancelBooking marks a booking cancelled, which frees its capacity.
// Cancelling twice is not an error.  It reports whether the status
// changed.
func (s *BookingService) CancelBooking(ctx context.Context, id uint64) (bool, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", int64(id)))

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return false, err
	}
	if b.Status == model.StatusCancelled {
		return false, nil
	}
	if err := s.store.UpdateBookingStatus(ctx, id, model.StatusCancelled); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	s.log.WithField("booking_id", id).Info("booking cancelled")
	return true, nil
}
