package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/repository"
)

// DefaultColumns is the board created on first start.
var DefaultColumns = []struct {
	Title string
	Order int
}{
	{"To Do", 1},
	{"In Progress", 2},
	{"In Review", 3},
	{"Done", 4},
}

// KanbanService manages board columns and task placement.  A task's
// column and its status are independent; moving never touches status.
type KanbanService struct {
	Columns repository.ColumnStore
	Tasks   repository.TaskStore
	Logger  *slog.Logger
	Now     func() time.Time

	activity activity
}

func NewKanbanService(stores repository.Stores, pub ActivityPublisher, logger *slog.Logger) *KanbanService {
	logger = orDiscard(logger)
	return &KanbanService{
		Columns:  stores.Columns,
		Tasks:    stores.Tasks,
		Logger:   logger,
		Now:      utcNow,
		activity: activity{pub: pub, log: logger},
	}
}

// GetColumns returns the board: columns by order (ties by id), each
// with its current tasks.
func (s *KanbanService) GetColumns(ctx context.Context) ([]model.KanbanColumn, error) {
	cols, err := s.Columns.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		tasks, err := s.Tasks.ListByColumn(ctx, cols[i].ID)
		if err != nil {
			return nil, err
		}
		cols[i].Tasks = tasks
	}
	return cols, nil
}

// CreateColumn adds a column.  Duplicate titles and orders are allowed.
func (s *KanbanService) CreateColumn(ctx context.Context, title string, order int) (*model.KanbanColumn, error) {
	title, err := columnTitle(title)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	c := &model.KanbanColumn{Title: title, Order: order, CreatedAt: now, UpdatedAt: now, Tasks: []model.Task{}}
	if err := s.Columns.Create(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("column created", "column_id", c.ID, "order", c.Order)
	return c, nil
}

func (s *KanbanService) UpdateColumn(ctx context.Context, id int64, title string, order int) (*model.KanbanColumn, error) {
	title, err := columnTitle(title)
	if err != nil {
		return nil, err
	}
	c, err := s.Columns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Title = title
	c.Order = order
	c.UpdatedAt = s.Now()
	if err := s.Columns.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteColumn fails with ErrColumnNotEmpty while tasks reference it.
func (s *KanbanService) DeleteColumn(ctx context.Context, id int64) error {
	if err := s.Columns.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("column deleted", "column_id", id)
	return nil
}

// MoveTask puts the task into columnID and bumps updated_at, even when
// the task is already there.  The mover must be able to see the task.
func (s *KanbanService) MoveTask(ctx context.Context, actor model.Principal, taskID, columnID int64) (*model.Task, error) {
	t, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, ErrPermissionDenied
	}
	if _, err := s.Columns.GetByID(ctx, columnID); err != nil {
		return nil, err
	}
	now := s.Now()
	if err := s.Tasks.MoveToColumn(ctx, taskID, columnID, now); err != nil {
		return nil, err
	}
	from := t.ColumnID
	t.ColumnID = columnID
	t.UpdatedAt = now
	s.activity.emit(queue.TaskMoved, actor.ID, t, from, now)
	return t, nil
}

// EnsureDefaultColumns seeds DefaultColumns when the board is empty and
// reports whether it did.
func (s *KanbanService) EnsureDefaultColumns(ctx context.Context) (bool, error) {
	n, err := s.Columns.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	now := s.Now()
	cols := make([]*model.KanbanColumn, len(DefaultColumns))
	for i, d := range DefaultColumns {
		cols[i] = &model.KanbanColumn{Title: d.Title, Order: d.Order, CreatedAt: now, UpdatedAt: now}
	}
	if err := s.Columns.CreateMany(ctx, cols); err != nil {
		return false, err
	}
	s.Logger.Info("default kanban columns created", "count", len(cols))
	return true, nil
}

func columnTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > 50 {
		return "", invalid("title", "must be at most 50 characters")
	}
	return title, nil
}
