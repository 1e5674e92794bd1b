package progress

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardboard/wardboard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "therapist"))
	readGroup.GET("/patients/:id/progress", h.ListByPatient)

	writeGroup := api.Group("", auth.RequireRole("admin", "nurse", "therapist"))
	writeGroup.PUT("/patients/:id/progress/:milestone", h.Record)
}

type recordRequest struct {
	Completed   bool   `json:"completed"`
	DelayReason string `json:"delay_reason,omitempty"`
}

func (h *Handler) Record(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	st := &ProgressStatus{
		PatientID:   pid,
		Milestone:   Milestone(c.Param("milestone")),
		Completed:   req.Completed,
		DelayReason: req.DelayReason,
	}
	if err := h.svc.Record(c.Request().Context(), st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	statuses, err := h.svc.ListByPatient(c.Request().Context(), pid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, statuses)
}
