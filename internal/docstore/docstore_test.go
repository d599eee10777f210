package docstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// These tests need a running MongoDB and skip without one.  CI starts a
// mongo:7 service for them; locally:
//
//	docker run --rm -p 27017:27017 mongo:7
//	TASKBOARD_TEST_MONGO_URI=mongodb://localhost:27017 go test ./internal/docstore/
func setupStore(t *testing.T) repository.Stores {
	t.Helper()
	uri := os.Getenv("TASKBOARD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TASKBOARD_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("taskboard_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	s, err := New(ctx, db)
	require.NoError(t, err)
	return s.Stores()
}

func TestSequentialIDsAndUniqueness(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	for i, name := range []string{"ann", "bob", "cid"} {
		u := &model.User{Username: name, Email: name + "@example.com", Role: model.RoleUser, IsActive: true}
		require.NoError(t, st.Users.Create(ctx, u))
		assert.Equal(t, int64(i+1), u.ID)
	}

	err := st.Users.Create(ctx, &model.User{Username: "ann", Email: "new@example.com"})
	assert.ErrorIs(t, err, repository.ErrUsernameExists)
	err = st.Users.Create(ctx, &model.User{Username: "new", Email: "ANN@example.com"})
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	n, err := st.Users.CountByIDs(ctx, []int64{1, 3, 9})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestColumnsAndTasks(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	cols := []*model.KanbanColumn{
		{Title: "Done", Order: 2, CreatedAt: now, UpdatedAt: now},
		{Title: "To Do", Order: 1, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, st.Columns.CreateMany(ctx, cols))
	assert.Equal(t, int64(1), cols[0].ID)
	assert.Equal(t, int64(2), cols[1].ID)

	list, err := st.Columns.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "To Do", list[0].Title)

	task := &model.Task{Title: "t", Priority: model.PriorityHigh, Status: model.StatusPending,
		ColumnID: cols[1].ID, CreatedBy: 1, AssignedTo: model.Assignees{2}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.Tasks.Create(ctx, task))
	assert.Equal(t, int64(1), task.ID)

	mine, err := st.Tasks.ListForUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assert.ErrorIs(t, st.Columns.Delete(ctx, cols[1].ID), repository.ErrColumnNotEmpty)
	require.NoError(t, st.Tasks.MoveToColumn(ctx, task.ID, cols[0].ID, now.Add(time.Minute)))
	require.NoError(t, st.Columns.Delete(ctx, cols[1].ID))
	assert.ErrorIs(t, st.Columns.Delete(ctx, cols[1].ID), repository.ErrColumnNotFound)

	got, err := st.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, cols[0].ID, got.ColumnID)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}
