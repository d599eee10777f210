package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

type TaskHandler struct {
	Tasks  *service.TaskService
	Logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Logger: orDefault(logger)}
}

// taskReq is shared by create and update.  assigned_to takes a single id
// or a list.
type taskReq struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description"`
	Priority    *string          `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *string          `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DueDate     *time.Time       `json:"due_date"`
	ColumnID    *int64           `json:"column_id" validate:"omitempty,gt=0"`
	AssignedTo  *model.Assignees `json:"assigned_to"`
}

func (r taskReq) input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		DueDate:     r.DueDate,
		ColumnID:    r.ColumnID,
		AssignedTo:  r.AssignedTo,
	}
}

// List returns every task for admins and the caller's own or assigned
// tasks otherwise.
func (h *TaskHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	tasks, err := h.Tasks.List(ctx, principal(c))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, items(tasks))
}

func (h *TaskHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tasks.Get(ctx, principal(c), id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Create(c echo.Context) error {
	var req taskReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tasks.Create(ctx, principal(c), req.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update serves both PUT and PATCH.
func (h *TaskHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	var req taskReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tasks.Update(ctx, principal(c), id, req.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tasks.Delete(ctx, principal(c), id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
