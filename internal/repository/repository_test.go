package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/database"
	"github.com/iliyamo/taskboard/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, r *UserRepo, username, email string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: email, PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(setupTestDB(t))

	ann := seedUser(t, users, "ann", "  Ann@Example.com ")
	bob := seedUser(t, users, "bob", "bob@example.com")
	assert.Equal(t, int64(1), ann.ID)
	assert.Equal(t, int64(2), bob.ID)
	assert.Equal(t, "ann@example.com", ann.Email)

	t.Run("lookups", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "ANN@example.com")
		require.NoError(t, err)
		assert.Equal(t, ann.ID, got.ID)
		assert.True(t, got.IsActive)

		got, err = users.GetByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)

		_, err = users.GetByID(ctx, 99)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unique indexes", func(t *testing.T) {
		err := users.Create(ctx, &model.User{Username: "ann2", Email: "ann@example.com", PasswordHash: "x", Role: model.RoleUser})
		assert.ErrorIs(t, err, ErrEmailExists)
		assert.ErrorIs(t, err, ErrConflict)

		err = users.Create(ctx, &model.User{Username: "ann", Email: "other@example.com", PasswordHash: "x", Role: model.RoleUser})
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("count by ids", func(t *testing.T) {
		n, err := users.CountByIDs(ctx, []int64{ann.ID, bob.ID, bob.ID, 77})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("update and delete", func(t *testing.T) {
		bob.Phone = "555"
		bob.UpdatedAt = time.Now().UTC()
		require.NoError(t, users.Update(ctx, bob))
		got, err := users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "555", got.Phone)

		require.NoError(t, users.Delete(ctx, bob.ID))
		assert.ErrorIs(t, users.Delete(ctx, bob.ID), ErrUserNotFound)
		assert.ErrorIs(t, users.Update(ctx, bob), ErrUserNotFound)

		all, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "ann", all[0].Username)
	})
}

func TestTaskRepo(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	tasks := NewTaskRepo(db)
	now := time.Now().UTC()

	newTask := func(title string, creator int64, assignees ...int64) *model.Task {
		t.Helper()
		task := &model.Task{
			Title: title, Priority: model.PriorityHigh, Status: model.StatusPending,
			ColumnID: 1, CreatedBy: creator, AssignedTo: assignees, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, tasks.Create(ctx, task))
		return task
	}

	a := newTask("a", 1, 2, 3, 2)
	b := newTask("b", 2)
	c := newTask("c", 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{a.ID, b.ID, c.ID})
	assert.Equal(t, model.Assignees{2, 3}, a.AssignedTo)

	t.Run("get", func(t *testing.T) {
		got, err := tasks.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.Assignees{2, 3}, got.AssignedTo)
		assert.Nil(t, got.CompletedAt)
		assert.WithinDuration(t, now, got.CreatedAt, time.Millisecond)

		got, err = tasks.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.Assignees{}, got.AssignedTo)

		_, err = tasks.GetByID(ctx, 42)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("visibility", func(t *testing.T) {
		mine, err := tasks.ListForUser(ctx, 2)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, a.ID, mine[0].ID)
		assert.Equal(t, b.ID, mine[1].ID)

		none, err := tasks.ListForUser(ctx, 9)
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := tasks.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("update replaces assignees", func(t *testing.T) {
		done := now.Add(time.Hour)
		a.Status = model.StatusCompleted
		a.CompletedAt = &done
		a.AssignedTo = model.Assignees{4}
		a.UpdatedAt = done
		require.NoError(t, tasks.Update(ctx, a))

		got, err := tasks.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.Assignees{4}, got.AssignedTo)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, done, *got.CompletedAt, time.Millisecond)

		assert.ErrorIs(t, tasks.Update(ctx, &model.Task{ID: 99}), ErrTaskNotFound)
	})

	t.Run("move", func(t *testing.T) {
		later := now.Add(2 * time.Hour)
		require.NoError(t, tasks.MoveToColumn(ctx, b.ID, 7, later))
		got, err := tasks.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ColumnID)
		assert.WithinDuration(t, later, got.UpdatedAt, time.Millisecond)

		inCol, err := tasks.ListByColumn(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, inCol, 1)

		assert.ErrorIs(t, tasks.MoveToColumn(ctx, 99, 7, later), ErrTaskNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, tasks.Delete(ctx, c.ID))
		assert.ErrorIs(t, tasks.Delete(ctx, c.ID), ErrTaskNotFound)
	})
}

func TestColumnRepo(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	cols := NewColumnRepo(db)
	tasks := NewTaskRepo(db)
	now := time.Now().UTC()

	require.NoError(t, cols.CreateMany(ctx, []*model.KanbanColumn{
		{Title: "Done", Order: 4, CreatedAt: now, UpdatedAt: now},
		{Title: "To Do", Order: 1, CreatedAt: now, UpdatedAt: now},
	}))
	dup := &model.KanbanColumn{Title: "Also first", Order: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, cols.Create(ctx, dup))
	assert.Equal(t, int64(3), dup.ID)

	list, err := cols.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"To Do", "Also first", "Done"}, []string{list[0].Title, list[1].Title, list[2].Title})
	assert.NotNil(t, list[0].Tasks)

	n, err := cols.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	dup.Title = "Backlog"
	dup.Order = 0
	require.NoError(t, cols.Update(ctx, dup))
	got, err := cols.GetByID(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backlog", got.Title)
	assert.ErrorIs(t, cols.Update(ctx, &model.KanbanColumn{ID: 99, Title: "x"}), ErrColumnNotFound)

	task := &model.Task{Title: "t", Priority: model.PriorityLow, Status: model.StatusPending, ColumnID: dup.ID, CreatedBy: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, tasks.Create(ctx, task))

	assert.ErrorIs(t, cols.Delete(ctx, dup.ID), ErrColumnNotEmpty)
	assert.ErrorIs(t, cols.Delete(ctx, 99), ErrColumnNotFound)

	require.NoError(t, tasks.Delete(ctx, task.ID))
	require.NoError(t, cols.Delete(ctx, dup.ID))
	_, err = cols.GetByID(ctx, dup.ID)
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestTokenRepo(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	u := seedUser(t, NewUserRepo(db), "ann", "ann@example.com")
	tokens := NewTokenRepo(db)

	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "old", time.Now().Add(-time.Hour)))

	id, err := tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = tokens.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = tokens.ValidateRefresh(ctx, "missing")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, tokens.RevokeByHash(ctx, "h1"))
	_, err = tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, tokens.RevokeAllForUser(ctx, u.ID))
	_, err = tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDistinctIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, DistinctIDs([]int64{3, 0, 1, 3, -2}))
	assert.Empty(t, DistinctIDs(nil))
}
