package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles accepted on staff endpoints.
const (
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)

// RequireRole rejects with 403 any request whose role claim, as stored by
// JWTAuth, is not one of roles.  Comparison ignores case.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(string)
			if !ok || !allowed[strings.ToUpper(role)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
