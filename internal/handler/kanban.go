package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/service"
)

type KanbanHandler struct {
	Kanban *service.KanbanService
	Logger *slog.Logger
}

func NewKanbanHandler(kanban *service.KanbanService, logger *slog.Logger) *KanbanHandler {
	return &KanbanHandler{Kanban: kanban, Logger: orDefault(logger)}
}

type columnReq struct {
	Title string `json:"title" validate:"required,max=50"`
	Order int    `json:"order"`
}

type moveReq struct {
	ColumnID *int64 `json:"column_id" validate:"required,gt=0"`
}

// Columns returns the board: every column with its tasks.
func (h *KanbanHandler) Columns(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cols, err := h.Kanban.GetColumns(ctx)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items(cols))
}

func (h *KanbanHandler) CreateColumn(c echo.Context) error {
	var req columnReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	col, err := h.Kanban.CreateColumn(ctx, req.Title, req.Order)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, col)
}

func (h *KanbanHandler) UpdateColumn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req columnReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	col, err := h.Kanban.UpdateColumn(ctx, id, req.Title, req.Order)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, col)
}

func (h *KanbanHandler) DeleteColumn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Kanban.DeleteColumn(ctx, id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MoveTask takes the target column from ?new_column_id= or from a
// {"column_id": n} body.
func (h *KanbanHandler) MoveTask(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}

	var columnID int64
	if q := c.QueryParam("new_column_id"); q != "" {
		columnID, err = strconv.ParseInt(q, 10, 64)
		if err != nil || columnID <= 0 {
			return respondError(c, h.Logger, &service.ValidationError{Field: "new_column_id", Msg: "must be a positive integer"})
		}
	} else {
		var req moveReq
		if err := bindValid(c, &req); err != nil {
			return respondError(c, h.Logger, err)
		}
		columnID = *req.ColumnID
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Kanban.MoveTask(ctx, principal(c), taskID, columnID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, t)
}
