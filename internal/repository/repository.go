package repository

import (
	"context"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
)

// TaskStore persists tasks.  Create assigns the next sequential id.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id int64) (*model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	// ListForUser returns tasks the user created or is assigned to.
	ListForUser(ctx context.Context, userID int64) ([]model.Task, error)
	ListByColumn(ctx context.Context, columnID int64) ([]model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	// MoveToColumn sets column_id and updated_at without touching anything else.
	MoveToColumn(ctx context.Context, id, columnID int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// ColumnStore persists Kanban columns.  List returns them ordered by
// order then id.
type ColumnStore interface {
	Create(ctx context.Context, c *model.KanbanColumn) error
	CreateMany(ctx context.Context, cols []*model.KanbanColumn) error
	GetByID(ctx context.Context, id int64) (*model.KanbanColumn, error)
	List(ctx context.Context) ([]model.KanbanColumn, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, c *model.KanbanColumn) error
	// Delete fails with ErrColumnNotEmpty while any task references the column.
	Delete(ctx context.Context, id int64) error
}

// UserStore persists users.  Email and username are unique; violations
// surface as ErrEmailExists or ErrUsernameExists.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// CountByIDs reports how many of the distinct ids exist.
	CountByIDs(ctx context.Context, ids []int64) (int64, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id int64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID int64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (int64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

// Stores bundles one backend's implementations.
type Stores struct {
	Tasks   TaskStore
	Columns ColumnStore
	Users   UserStore
	Tokens  TokenStore
}

// DistinctIDs returns ids without duplicates or non-positive values,
// keeping first-seen order.
func DistinctIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
