package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/disciplina/discipline-kernel/internal/core/domain"
)

// ExecutionLogger records executions of scheduled instances.
type ExecutionLogger interface {
	LogExecution(ctx context.Context, userID, instanceID string, executedAt time.Time) (*domain.ActionInstance, error)
}

type ExecutionHandler struct {
	service ExecutionLogger
	now     func() time.Time
}

func NewExecutionHandler(service ExecutionLogger) *ExecutionHandler {
	return &ExecutionHandler{service: service, now: time.Now}
}

// Log handles POST /v1/instances/:id/executions. Members may only log their
// own instances; admins may log any.
func (h *ExecutionHandler) Log(c echo.Context) error {
	callerID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req logExecutionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	executedAt := h.now().UTC()
	if req.ExecutedAt != nil {
		executedAt = *req.ExecutedAt
	}

	owner := callerID
	if role == domain.RoleAdmin {
		owner = ""
	}

	inst, err := h.service.LogExecution(c.Request().Context(), owner, c.Param("id"), executedAt)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, instanceResponse{
		ID:                 inst.ID,
		ActionID:           inst.ActionID,
		UserID:             inst.UserID,
		ScheduledDate:      inst.ScheduledDate,
		ScheduledStartTime: inst.ScheduledStartTime,
		ScheduledEndTime:   inst.ScheduledEndTime,
		Status:             string(inst.Status),
		ExecutedAt:         inst.ExecutedAt,
	})
}
