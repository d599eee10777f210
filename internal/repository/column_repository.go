package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/taskboard/internal/model"
)

const columnSelect = "SELECT id, title, position, created_at, updated_at FROM kanban_columns"

// ColumnRepo stores Kanban columns in `kanban_columns`.
type ColumnRepo struct{ DB *sql.DB }

func NewColumnRepo(db *sql.DB) *ColumnRepo { return &ColumnRepo{DB: db} }

func (r *ColumnRepo) Create(ctx context.Context, c *model.KanbanColumn) error {
	id, err := insertColumn(ctx, r.DB, c)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// CreateMany inserts all columns atomically.
func (r *ColumnRepo) CreateMany(ctx context.Context, cols []*model.KanbanColumn) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ids := make([]int64, len(cols))
	for i, c := range cols {
		if ids[i], err = insertColumn(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for i, c := range cols {
		c.ID = ids[i]
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertColumn(ctx context.Context, db execer, c *model.KanbanColumn) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO kanban_columns (title, position, created_at, updated_at) VALUES (?,?,?,?)",
		c.Title, c.Order, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert column: %w", err)
	}
	return res.LastInsertId()
}

func (r *ColumnRepo) GetByID(ctx context.Context, id int64) (*model.KanbanColumn, error) {
	c, err := scanColumn(r.DB.QueryRowContext(ctx, columnSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrColumnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

// List returns columns by position, ties broken by id.
func (r *ColumnRepo) List(ctx context.Context) ([]model.KanbanColumn, error) {
	rows, err := r.DB.QueryContext(ctx, columnSelect+" ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()
	cols := []model.KanbanColumn{}
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, *c)
	}
	return cols, rows.Err()
}

func (r *ColumnRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM kanban_columns").Scan(&n); err != nil {
		return 0, fmt.Errorf("count columns: %w", err)
	}
	return n, nil
}

func (r *ColumnRepo) Update(ctx context.Context, c *model.KanbanColumn) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE kanban_columns SET title = ?, position = ?, updated_at = ? WHERE id = ?",
		c.Title, c.Order, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	return requireAffected(res, func() error {
		_, err := r.GetByID(ctx, c.ID)
		return err
	})
}

// Delete removes the column only while no task references it.  The
// check and the delete are one statement.
func (r *ColumnRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM kanban_columns WHERE id = ? AND NOT EXISTS (SELECT 1 FROM tasks WHERE column_id = ?)",
		id, id)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrColumnNotEmpty
}

func scanColumn(s rowScanner) (*model.KanbanColumn, error) {
	var c model.KanbanColumn
	if err := s.Scan(&c.ID, &c.Title, &c.Order, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.Tasks = []model.Task{}
	return &c, nil
}
