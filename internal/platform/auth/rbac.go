package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

// RequireRole rejects callers whose role is not listed. Admins always pass.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return apperror.Unauthenticated("authentication required")
			}
			if p.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return apperror.Forbidden("required role: " + strings.Join(names, " or "))
		}
	}
}
