package reminder

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
	"github.com/dannyude/medication-reminder-api/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reminders", h.ListReminders)
	api.GET("/reminders/today", h.TodayReminders)
	api.GET("/reminders/upcoming", h.UpcomingReminders)
	api.GET("/reminders/:id", h.GetReminder)
	api.POST("/reminders/:id/take", h.TakeReminder)
	api.POST("/reminders/:id/skip", h.SkipReminder)
	api.POST("/medications/:id/reminders/generate", h.GenerateReminders)
}

type resolveRequest struct {
	Notes       *string `json:"notes"`
	SideEffects *string `json:"side_effects"`
}

type markFunc func(ctx context.Context, reminderID, userID uuid.UUID, notes, sideEffects *string) (*Reminder, error)

func (h *Handler) TakeReminder(c echo.Context) error {
	return h.resolveReminder(c, h.svc.MarkTaken)
}

func (h *Handler) SkipReminder(c echo.Context) error {
	return h.resolveReminder(c, h.svc.MarkSkipped)
}

// resolveReminder maps a mark operation onto HTTP. A lost race or an illegal
// transition comes back as 409 with the outcome that actually won, so
// clients can refresh without a second round trip.
func (h *Handler) resolveReminder(c echo.Context, mark markFunc) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rem, err := mark(c.Request().Context(), id, userID, req.Notes, req.SideEffects)
	if err != nil {
		var stale *StaleStateError
		if errors.As(err, &stale) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "reminder already resolved",
				"status": stale.Current,
			})
		}
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "transition not allowed",
				"status": invalid.From,
			})
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rem)
}

func (h *Handler) GetReminder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	rem, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	return c.JSON(http.StatusOK, rem)
}

func (h *Handler) ListReminders(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	var f ListFilter
	if v := c.QueryParam("status"); v != "" {
		status := Status(v)
		switch status {
		case StatusPending, StatusSent, StatusTaken, StatusSkipped, StatusMissed:
			f.Status = &status
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		f.To = &t
	}

	limit := 50
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, total, err := h.svc.List(c.Request().Context(), userID, f, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) TodayReminders(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	items, err := h.svc.Today(c.Request().Context(), userID, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) UpcomingReminders(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	items, err := h.svc.Upcoming(c.Request().Context(), userID, time.Now(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) GenerateReminders(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}

	created, err := h.svc.Regenerate(c.Request().Context(), id, userID)
	if err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "medication not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"created": created})
}
