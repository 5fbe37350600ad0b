package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/disciplina/discipline-kernel/internal/api/middleware"
	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// ctxClaims extracts the identity injected by the Auth middleware. Both
// values must be present; their absence means the route is not behind Auth.
func ctxClaims(c echo.Context) (userID, role string, err error) {
	userID, _ = c.Get(middleware.CtxUserID).(string)
	role, _ = c.Get(middleware.CtxRole).(string)
	if userID == "" || role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return userID, role, nil
}

// targetUser decides whose data a request acts on. Admins may name any user;
// members only themselves.
func targetUser(callerID, role, requested string) (string, error) {
	if requested == "" || requested == callerID {
		return callerID, nil
	}
	if role != domain.RoleAdmin {
		return "", domain.ErrForbidden
	}
	return requested, nil
}
