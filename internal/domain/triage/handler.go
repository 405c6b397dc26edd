package triage

import (
	"net/http"

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
	g := api.Group("", auth.RequireRole("admin"))
	g.POST("/triage/run", h.RunBatch)
}

func (h *Handler) RunBatch(c echo.Context) error {
	report, err := h.svc.RunBatch(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
