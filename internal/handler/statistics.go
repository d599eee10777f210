package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/service"
)

type StatisticsHandler struct {
	Stats  *service.StatisticsService
	Logger *slog.Logger
}

func NewStatisticsHandler(stats *service.StatisticsService, logger *slog.Logger) *StatisticsHandler {
	return &StatisticsHandler{Stats: stats, Logger: orDefault(logger)}
}

// User returns the statistics of one user.  Users may only read their own.
func (h *StatisticsHandler) User(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	if p := principal(c); p.ID != id && !p.IsAdmin() {
		return respondError(c, h.Logger, service.ErrPermissionDenied)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Stats.CalculateUserStatistics(ctx, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, st)
}

// All returns one entry per user.  The route is admin only.
func (h *StatisticsHandler) All(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	all, err := h.Stats.GetAllStatistics(ctx)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items(all))
}
