package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxStaffID = "staff_id"
	ctxRole    = "role"
)

// StaffID returns the authenticated staff subject, or "anon" on routes
// that JWTAuth does not guard.
func StaffID(c echo.Context) string {
	switch v := c.Get(ctxStaffID).(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		// numeric sub claims decode as float64
		return fmt.Sprintf("%.0f", v)
	}
	return "anon"
}
