package queue

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opd/opd/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – any authenticated staff
	readGroup := api.Group("", auth.RequireRole("admin", "operator", "physician", "nurse"))
	readGroup.GET("/queue", h.GetCurrentQueue)
	readGroup.GET("/queue/next", h.GetNextPatient)
	readGroup.GET("/queue/current", h.GetCurrentPatient)
	readGroup.GET("/queue/stats", h.GetStats)

	// Write endpoints – front-desk operators only
	writeGroup := api.Group("", auth.RequireRole("admin", "operator"))
	writeGroup.POST("/queue/build", h.BuildQueue)
	writeGroup.POST("/queue/call-next", h.CallNext)
	writeGroup.PATCH("/queue/:id/status", h.UpdateStatus)
}

// httpError maps queue engine errors onto HTTP statuses. Busy and
// invalid-transition are conflicts, store failures are retryable 503s.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrQueueBusy):
		return echo.NewHTTPError(http.StatusConflict, ErrQueueBusy.Error())
	case errors.Is(err, ErrQueueEmpty):
		return echo.NewHTTPError(http.StatusNotFound, ErrQueueEmpty.Error())
	case errors.Is(err, ErrStore):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue store unavailable, retry later")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type buildQueueRequest struct {
	Decisions []Decision `json:"decisions"`
}

func (h *Handler) BuildQueue(c echo.Context) error {
	var req buildQueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entries, err := h.svc.BuildQueue(c.Request().Context(), req.Decisions)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"created": len(entries),
		"entries": entries,
	})
}

func (h *Handler) CallNext(c echo.Context) error {
	entry, err := h.svc.CallNext(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) GetCurrentQueue(c echo.Context) error {
	roster, err := h.svc.CurrentQueue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if roster == nil {
		roster = []*RosterEntry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":   len(roster),
		"entries": roster,
	})
}

func (h *Handler) GetNextPatient(c echo.Context) error {
	entry, err := h.svc.NextPatient(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) GetCurrentPatient(c echo.Context) error {
	entry, err := h.svc.CurrentPatient(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
