// Package handler holds the echo handlers of the booking API.  Handlers
// translate HTTP into service calls and service errors back into status
// codes; they hold no booking logic of their own.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/appointment-booking/internal/middleware"
	"github.com/iliyamo/appointment-booking/internal/model"
	"github.com/iliyamo/appointment-booking/internal/queue"
	"github.com/iliyamo/appointment-booking/internal/repository"
	"github.com/iliyamo/appointment-booking/internal/service"
)

// SlotLister is the availability engine as seen by the handler.
type SlotLister interface {
	ListSlots(ctx context.Context, itemID uint64, date time.Time, stepMinutes int) ([]model.Slot, error)
}

// Bookings is the booking service as seen by the handler.
type Bookings interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (uint64, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	CancelBooking(ctx context.Context, id uint64) (bool, error)
}

// EventPublisher receives booking events after commit.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev queue.BookingCreatedEvent) error
}

// BookingHandler serves slot listings and the booking endpoints.
type BookingHandler struct {
	slots     SlotLister
	bookings  Bookings
	publisher EventPublisher
	log       logrus.FieldLogger
}

// NewBookingHandler returns a handler.  publisher may be nil, in which
// case no events are sent.
func NewBookingHandler(slots SlotLister, bookings Bookings, publisher EventPublisher, log logrus.FieldLogger) *BookingHandler {
	if slots == nil || bookings == nil {
		panic("handler: nil dependency passed to NewBookingHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingHandler{slots: slots, bookings: bookings, publisher: publisher, log: log}
}

type customerInput struct {
	Name  string `json:"name" validate:"required,max=190"`
	Email string `json:"email" validate:"required,email,max=190"`
	Phone string `json:"phone" validate:"max=40"`
}

type createBookingInput struct {
	ItemID     uint64        `json:"item_id" validate:"required,gt=0"`
	Start      time.Time     `json:"start" validate:"required"`
	End        time.Time     `json:"end" validate:"required"`
	ResourceID *uint64       `json:"resource_id" validate:"omitempty,gt=0"`
	Customer   customerInput `json:"customer" validate:"required"`
	Notes      string        `json:"notes" validate:"max=2000"`
}

// ListSlots handles GET /v1/items/:id/slots?date=YYYY-MM-DD&step=15.  The
// response is computed on every call and marked no-store.
func (h *BookingHandler) ListSlots(c echo.Context) error {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || itemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	step := 0
	if s := c.QueryParam("step"); s != "" {
		step, err = strconv.Atoi(s)
		if err != nil || step < 1 || step > 24*60 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "step must be between 1 and 1440 minutes"})
		}
	}

	slots, err := h.slots.ListSlots(c.Request().Context(), itemID, date, step)
	if errors.Is(err, repository.ErrItemNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("item_id", itemID).Error("list slots failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, echo.Map{"items": slots})
}

// CreateBooking handles POST /v1/bookings.
//
//	201 {"booking_id": n}
//	409 slot taken, pick another
//	503 busy, retry (Retry-After set)
//	422 validation failures, all of them
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var in createBookingInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if err := c.Validate(&in); err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": service.KindValidation, "errors": fe})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	id, err := h.bookings.CreateBooking(ctx, service.CreateBookingRequest{
		ItemID:     in.ItemID,
		Start:      in.Start,
		End:        in.End,
		ResourceID: in.ResourceID,
		Customer:   model.Customer{Name: in.Customer.Name, Email: in.Customer.Email, Phone: in.Customer.Phone},
		Notes:      in.Notes,
	})
	switch service.KindOf(err) {
	case "":
	case service.KindConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": service.KindConflict, "message": service.ErrConflict.Error()})
	case service.KindLockTimeout:
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": service.KindLockTimeout, "message": service.ErrLockTimeout.Error()})
	case service.KindValidation:
		var ve *service.ValidationError
		errors.As(err, &ve)
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": service.KindValidation, "errors": ve.Failures})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	h.publishCreated(ctx, id, in.Customer.Email)
	return c.JSON(http.StatusCreated, echo.Map{"booking_id": id})
}

// publishCreated sends booking.created in the background so a slow broker
// never delays the response.
func (h *BookingHandler) publishCreated(ctx context.Context, id uint64, email string) {
	if h.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		b, err := h.bookings.GetBooking(ctx, id)
		if err != nil {
			h.log.WithError(err).WithField("booking_id", id).Warn("event not published: reload failed")
			return
		}
		_ = h.publisher.PublishBookingCreated(ctx, queue.NewBookingCreatedEvent(*b, email))
	}()
}

// GetBooking handles GET /v1/bookings/:id for staff.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.bookings.GetBooking(c.Request().Context(), id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("booking_id", id).Error("get booking failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, b)
}

// CancelBooking handles DELETE /v1/bookings/:id for staff.  Cancelling an
// already cancelled booking succeeds with "changed": false.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	changed, err := h.bookings.CancelBooking(c.Request().Context(), id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err != nil {
		h.log.WithError(err).WithField("booking_id", id).Error("cancel booking failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	h.log.WithField("booking_id", id).WithField("staff_id", middleware.StaffID(c)).Info("booking cancelled by staff")
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "status": model.StatusCancelled, "changed": changed})
}
