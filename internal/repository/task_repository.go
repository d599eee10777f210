package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
)

// taskSelect reads a task row plus its assignees folded into one column.
const taskSelect = `SELECT t.id, t.title, t.description, t.priority, t.status, t.due_date,
	t.column_id, t.created_by, t.completed_at, t.created_at, t.updated_at,
	(SELECT GROUP_CONCAT(a.user_id) FROM task_assignees a WHERE a.task_id = t.id)
	FROM tasks t`

// TaskRepo stores tasks in `tasks` and their assignees in
// `task_assignees`.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

// Create inserts the task and its assignees in one transaction and fills
// in t.ID.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (title, description, priority, status, due_date, column_id, created_by, completed_at, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.Priority, t.Status, nullTime(t.DueDate), t.ColumnID, t.CreatedBy,
		nullTime(t.CompletedAt), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.AssignedTo = DistinctIDs(t.AssignedTo)
	if err := insertAssignees(ctx, tx, id, t.AssignedTo); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, taskSelect+" WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *TaskRepo) List(ctx context.Context) ([]model.Task, error) {
	return r.query(ctx, taskSelect+" ORDER BY t.id")
}

func (r *TaskRepo) ListForUser(ctx context.Context, userID int64) ([]model.Task, error) {
	return r.query(ctx, taskSelect+` WHERE t.created_by = ?
		OR EXISTS (SELECT 1 FROM task_assignees x WHERE x.task_id = t.id AND x.user_id = ?)
		ORDER BY t.id`, userID, userID)
}

func (r *TaskRepo) ListByColumn(ctx context.Context, columnID int64) ([]model.Task, error) {
	return r.query(ctx, taskSelect+" WHERE t.column_id = ? ORDER BY t.id", columnID)
}

func (r *TaskRepo) query(ctx context.Context, q string, args ...any) ([]model.Task, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update replaces every mutable field and the assignee set.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", t.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, priority=?, status=?, due_date=?, column_id=?,
		 completed_at=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, t.Priority, t.Status, nullTime(t.DueDate), t.ColumnID,
		nullTime(t.CompletedAt), t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = ?", t.ID); err != nil {
		return fmt.Errorf("reset assignees: %w", err)
	}
	t.AssignedTo = DistinctIDs(t.AssignedTo)
	if err := insertAssignees(ctx, tx, t.ID, t.AssignedTo); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TaskRepo) MoveToColumn(ctx context.Context, id, columnID int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET column_id = ?, updated_at = ? WHERE id = ?", columnID, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	return requireAffected(res, func() error {
		_, err := r.GetByID(ctx, id)
		return err
	})
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("delete assignees: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return tx.Commit()
}

func insertAssignees(ctx context.Context, tx *sql.Tx, taskID int64, ids []int64) error {
	for _, uid := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO task_assignees (task_id, user_id) VALUES (?,?)", taskID, uid); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		t         model.Task
		due       sql.NullTime
		completed sql.NullTime
		assignees sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &due,
		&t.ColumnID, &t.CreatedBy, &completed, &t.CreatedAt, &t.UpdatedAt, &assignees); err != nil {
		return nil, err
	}
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.AssignedTo = parseIDList(assignees)
	return &t, nil
}
