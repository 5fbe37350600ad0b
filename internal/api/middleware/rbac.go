package middleware

import (
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// RBAC admits callers whose token role is one of roles. It must run after
// Auth. A rejected caller surfaces as domain.ErrForbidden so the shared error
// handler renders it like any other ownership failure.
func RBAC(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" || !slices.Contains(roles, role) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
