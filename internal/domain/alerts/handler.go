package alerts

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardboard/wardboard/internal/platform/auth"
	"github.com/wardboard/wardboard/internal/platform/docstore"
	"github.com/wardboard/wardboard/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "therapist"))
	readGroup.GET("/patients/:id/alerts/current", h.GetCurrent)
	readGroup.GET("/patients/:id/alerts", h.ListHistory)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	writeGroup.POST("/patients/:id/alerts", h.Submit)
	writeGroup.POST("/patients/:id/alerts/end-activity", h.EndActivity)
}

// submitRequest is the wire shape of one board form submission: the
// declared state of every field the user touched.
type submitRequest struct {
	Fields map[FieldLabel]FieldIntent `json:"fields"`
}

type endActivityRequest struct {
	Labels []FieldLabel `json:"labels"`
}

func (h *Handler) Submit(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	snap, err := h.svc.Submit(c.Request().Context(), pid, req.Fields)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *Handler) EndActivity(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req endActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Labels) == 0 {
		req.Labels = []FieldLabel{FieldPrepareTherapy, FieldReadyForTherapy, FieldOutOfWard}
	}

	snap, err := h.svc.EndActivity(c.Request().Context(), pid, req.Labels)
	if err != nil {
		return alertError(err)
	}
	if snap == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetCurrent(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	snap, err := h.svc.Current(c.Request().Context(), pid)
	if err != nil {
		return alertError(err)
	}
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no alert snapshot for patient")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ListHistory(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)

	snaps, total, err := h.svc.History(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(snaps, total, pg.Limit, pg.Offset))
}

// alertError maps the service error taxonomy onto HTTP statuses. A commit
// rejected because the previous snapshot vanished under us is a retryable
// conflict, not a server fault.
func alertError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	if errors.Is(err, docstore.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "snapshot superseded concurrently, retry")
	}
	var re *ReadError
	if errors.As(err, &re) {
		return echo.NewHTTPError(http.StatusBadGateway, re.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
