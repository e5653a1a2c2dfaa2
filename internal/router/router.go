// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/appointment-booking/internal/handler"
	"github.com/iliyamo/appointment-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.  A
// nil gatherer leaves /metrics unregistered.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health(db))
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterBooking registers the booking API.
//
// Slot listings and booking creation are public; creation runs behind the
// rate limiter so bursts are shed before they reach the lock layer.
// Reading and cancelling bookings requires a staff token.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.GET("/v1/items/:id/slots", h.ListSlots)
	if limiter != nil {
		e.POST("/v1/bookings", h.CreateBooking, limiter)
	} else {
		e.POST("/v1/bookings", h.CreateBooking)
	}

	staff := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin),
	}
	e.GET("/v1/bookings/:id", h.GetBooking, staff...)
	e.DELETE("/v1/bookings/:id", h.CancelBooking, staff...)
}
