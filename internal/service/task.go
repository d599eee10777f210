package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/repository"
)

// TaskInput carries create and update fields.  On update, nil fields are
// left unchanged, so the same type serves PUT and PATCH.
type TaskInput struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *time.Time
	ColumnID    *int64
	AssignedTo  *model.Assignees
}

// TaskService implements task CRUD with visibility rules: a user sees
// tasks they created or are assigned to, an admin sees everything.
type TaskService struct {
	Tasks   repository.TaskStore
	Columns repository.ColumnStore
	Users   repository.UserStore
	Logger  *slog.Logger
	Now     func() time.Time

	activity activity
}

func NewTaskService(stores repository.Stores, pub ActivityPublisher, logger *slog.Logger) *TaskService {
	logger = orDiscard(logger)
	return &TaskService{
		Tasks:    stores.Tasks,
		Columns:  stores.Columns,
		Users:    stores.Users,
		Logger:   logger,
		Now:      utcNow,
		activity: activity{pub: pub, log: logger},
	}
}

func (s *TaskService) List(ctx context.Context, actor model.Principal) ([]model.Task, error) {
	if actor.IsAdmin() {
		return s.Tasks.List(ctx)
	}
	return s.Tasks.ListForUser(ctx, actor.ID)
}

func (s *TaskService) Get(ctx context.Context, actor model.Principal, id int64) (*model.Task, error) {
	t, err := s.Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, ErrPermissionDenied
	}
	return t, nil
}

// Create validates in and stores a task owned by actor.  Without an
// explicit column the task lands in the first column of the board.
func (s *TaskService) Create(ctx context.Context, actor model.Principal, in TaskInput) (*model.Task, error) {
	if in.Title == nil {
		return nil, invalid("title", "is required")
	}
	now := s.Now()
	t := &model.Task{
		Priority:   model.PriorityMedium,
		Status:     model.StatusPending,
		CreatedBy:  actor.ID,
		AssignedTo: model.Assignees{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.apply(ctx, t, in, now); err != nil {
		return nil, err
	}
	if in.ColumnID == nil {
		cols, err := s.Columns.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			t.ColumnID = cols[0].ID
		}
	}
	if err := s.Tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	s.Logger.Info("task created", "task_id", t.ID, "by", actor.ID)
	s.activity.emit(queue.TaskCreated, actor.ID, t, 0, now)
	return t, nil
}

func (s *TaskService) Update(ctx context.Context, actor model.Principal, id int64, in TaskInput) (*model.Task, error) {
	t, err := s.Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, ErrPermissionDenied
	}
	now := s.Now()
	if err := s.apply(ctx, t, in, now); err != nil {
		return nil, err
	}
	t.UpdatedAt = now
	if err := s.Tasks.Update(ctx, t); err != nil {
		return nil, err
	}
	s.activity.emit(queue.TaskUpdated, actor.ID, t, 0, now)
	return t, nil
}

// Delete is allowed to the creator and to admins.
func (s *TaskService) Delete(ctx context.Context, actor model.Principal, id int64) error {
	t, err := s.Tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.CreatedBy != actor.ID && !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	if err := s.Tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("task deleted", "task_id", id, "by", actor.ID)
	s.activity.emit(queue.TaskDeleted, actor.ID, t, 0, s.Now())
	return nil
}

// apply validates and copies the non-nil fields of in onto t, keeping
// completed_at in step with the status.
func (s *TaskService) apply(ctx context.Context, t *model.Task, in TaskInput, now time.Time) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := utf8.RuneCountInString(title); n < 1 || n > 200 {
			return invalid("title", "must be 1-200 characters")
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		if !model.ValidPriority(*in.Priority) {
			return invalid("priority", "must be one of low, medium, high")
		}
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		if !model.ValidStatus(*in.Status) {
			return invalid("status", "must be one of pending, in_progress, completed")
		}
		t.Status = *in.Status
	}
	if in.DueDate != nil {
		d := in.DueDate.UTC()
		t.DueDate = &d
	}
	if in.ColumnID != nil {
		if _, err := s.Columns.GetByID(ctx, *in.ColumnID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalid("column_id", "column %d does not exist", *in.ColumnID)
			}
			return err
		}
		t.ColumnID = *in.ColumnID
	}
	if in.AssignedTo != nil {
		for _, id := range *in.AssignedTo {
			if id <= 0 {
				return invalid("assigned_to", "user ids must be positive")
			}
		}
		ids := repository.DistinctIDs(*in.AssignedTo)
		if len(ids) > 0 {
			n, err := s.Users.CountByIDs(ctx, ids)
			if err != nil {
				return err
			}
			if n != int64(len(ids)) {
				return invalid("assigned_to", "unknown user")
			}
		}
		t.AssignedTo = ids
	}

	switch {
	case t.Status == model.StatusCompleted && t.CompletedAt == nil:
		c := now
		t.CompletedAt = &c
	case t.Status != model.StatusCompleted:
		t.CompletedAt = nil
	}
	return nil
}

func canSee(p model.Principal, t *model.Task) bool {
	return p.IsAdmin() || t.VisibleTo(p.ID)
}
