package board

import (
	"net/http"

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
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse", "therapist"))
	g.GET("/board", h.GetBoard)
	g.GET("/board/summary", h.GetSummary)
}

func (h *Handler) GetBoard(c echo.Context) error {
	cards, err := h.svc.Board(c.Request().Context(), c.QueryParam("building"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patients": cards,
		"total":    len(cards),
	})
}

func (h *Handler) GetSummary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}
