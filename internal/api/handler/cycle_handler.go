package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/disciplina/discipline-kernel/internal/core/ports"
)

// CycleEnqueuer accepts cycle jobs; the Redis queue or the dispatcher.
type CycleEnqueuer interface {
	Enqueue(ctx context.Context, req ports.CycleRequest) error
}

// CycleHandler is the queue-driven trigger for kernel cycles.
type CycleHandler struct {
	queue CycleEnqueuer
	now   func() time.Time
}

func NewCycleHandler(queue CycleEnqueuer) *CycleHandler {
	return &CycleHandler{queue: queue, now: time.Now}
}

// Trigger handles POST /v1/cycles. The job runs asynchronously; the response
// carries the trace ID to correlate its events and audit entries.
func (h *CycleHandler) Trigger(c echo.Context) error {
	callerID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req triggerCycleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	userID, err := targetUser(callerID, role, req.UserID)
	if err != nil {
		return err
	}

	job := ports.CycleRequest{
		UserID:    userID,
		TraceID:   req.TraceID,
		Timestamp: h.now().UTC(),
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}
	if req.Timestamp != nil {
		job.Timestamp = *req.Timestamp
	}

	if err := h.queue.Enqueue(c.Request().Context(), job); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, triggerCycleResponse{
		UserID:  job.UserID,
		TraceID: job.TraceID,
		Status:  "queued",
	})
}
