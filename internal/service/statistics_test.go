package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/model"
)

var statsNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func TestComputeStatisticsEmpty(t *testing.T) {
	st := ComputeStatistics(7, nil, statsNow, time.UTC)

	assert.Equal(t, int64(7), st.UserID)
	assert.Zero(t, st.TotalTasks)
	assert.Zero(t, st.CompletedTasks)
	assert.Zero(t, st.PendingTasks)
	assert.Zero(t, st.AverageCompletionTime)
	assert.Zero(t, st.ProductivityScore)
	assert.Zero(t, st.StreakDays)
	assert.Equal(t, statsNow, st.LastActivity)
	assert.Equal(t, map[string]int{"low": 0, "medium": 0, "high": 0}, st.TasksByPriority)
	assert.Equal(t, map[string]int{"pending": 0, "in_progress": 0, "completed": 0}, st.TasksByStatus)
}

func TestComputeStatisticsScore(t *testing.T) {
	created := statsNow.Add(-10 * time.Hour)
	done := created.Add(4 * time.Hour)
	tasks := []model.Task{
		{Status: model.StatusCompleted, Priority: model.PriorityHigh, CreatedAt: created, CompletedAt: &done, UpdatedAt: done},
		{Status: model.StatusPending, Priority: model.PriorityLow, CreatedAt: created, UpdatedAt: created},
	}
	st := ComputeStatistics(1, tasks, statsNow, time.UTC)

	assert.Equal(t, 2, st.TotalTasks)
	assert.Equal(t, 1, st.CompletedTasks)
	assert.Equal(t, 1, st.PendingTasks)
	assert.Equal(t, map[string]int{"low": 1, "medium": 0, "high": 1}, st.TasksByPriority)
	assert.Equal(t, map[string]int{"pending": 1, "in_progress": 0, "completed": 1}, st.TasksByStatus)
	assert.InDelta(t, 44.0, st.ProductivityScore, 1e-9)
	assert.InDelta(t, 4.0, st.AverageCompletionTime, 1e-9)
	assert.Equal(t, done, st.LastActivity)
}

func TestComputeStatisticsInProgressCountsAsPending(t *testing.T) {
	tasks := []model.Task{
		{Status: model.StatusInProgress, Priority: model.PriorityMedium, UpdatedAt: statsNow},
		{Status: model.StatusCompleted, Priority: model.PriorityMedium, UpdatedAt: statsNow},
	}
	st := ComputeStatistics(1, tasks, statsNow, time.UTC)
	assert.Equal(t, 1, st.PendingTasks)
	// completed without completed_at is left out of the average
	assert.Zero(t, st.AverageCompletionTime)
}

func TestComputeStatisticsStreak(t *testing.T) {
	day := func(back int) model.Task {
		return model.Task{Status: model.StatusPending, Priority: model.PriorityLow, UpdatedAt: statsNow.AddDate(0, 0, -back)}
	}
	cases := []struct {
		name  string
		tasks []model.Task
		want  int
	}{
		{"three consecutive days", []model.Task{day(0), day(1), day(2), day(4)}, 3},
		{"several tasks per day", []model.Task{day(0), day(0), day(1)}, 2},
		{"nothing today", []model.Task{day(1), day(2)}, 0},
		{"only today", []model.Task{day(0)}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeStatistics(1, tc.tasks, statsNow, time.UTC).StreakDays)
		})
	}
}

func TestComputeStatisticsStreakUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 23:30 UTC on May 9 is already May 10 in Tokyo.
	now := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)
	tasks := []model.Task{
		{Priority: model.PriorityLow, Status: model.StatusPending, UpdatedAt: time.Date(2024, 5, 9, 16, 0, 0, 0, time.UTC)}, // May 10 JST
		{Priority: model.PriorityLow, Status: model.StatusPending, UpdatedAt: time.Date(2024, 5, 9, 1, 0, 0, 0, time.UTC)},  // May 9 JST
	}
	assert.Equal(t, 2, ComputeStatistics(1, tasks, now, tokyo).StreakDays)
	assert.Equal(t, 1, ComputeStatistics(1, tasks, now, time.UTC).StreakDays)
}

func TestStatisticsServiceFromStore(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()
	users := NewUserService(stores.Users, 4, nil)
	ann, err := users.Create(ctx, nil, CreateUserInput{Username: "ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	bob, err := users.Create(ctx, nil, CreateUserInput{Username: "bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	tasks := NewTaskService(stores, nil, nil)
	assignBob := model.Assignees{bob.ID}
	_, err = tasks.Create(ctx, principalOf(ann), TaskInput{Title: strp("shared"), Priority: strp("high"), AssignedTo: &assignBob})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, principalOf(ann), TaskInput{Title: strp("own"), Priority: strp("low"), Status: strp("completed")})
	require.NoError(t, err)

	stats := NewStatisticsService(stores.Tasks, stores.Users, time.UTC)

	annStats, err := stats.CalculateUserStatistics(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, annStats.TotalTasks)
	assert.Equal(t, 1, annStats.CompletedTasks)
	assert.Equal(t, 1, annStats.StreakDays)

	bobStats, err := stats.CalculateUserStatistics(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bobStats.TotalTasks)
	assert.InDelta(t, 20.0, bobStats.ProductivityScore, 1e-9)

	all, err := stats.GetAllStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ann.ID, all[0].UserID)
	assert.Equal(t, bob.ID, all[1].UserID)

	ghost, err := stats.CalculateUserStatistics(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, ghost.TotalTasks)
}

func TestStatisticsRepeatable(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()
	users := NewUserService(stores.Users, 4, nil)
	ann, err := users.Create(ctx, nil, CreateUserInput{Username: "ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	tasks := NewTaskService(stores, nil, nil)
	for _, status := range []string{"pending", "in_progress", "completed"} {
		_, err = tasks.Create(ctx, principalOf(ann), TaskInput{Title: strp("t " + status), Status: strp(status)})
		require.NoError(t, err)
	}

	stats := NewStatisticsService(stores.Tasks, stores.Users, time.UTC)
	now := time.Now().UTC()
	stats.Now = func() time.Time { return now }

	first, err := stats.CalculateUserStatistics(ctx, ann.ID)
	require.NoError(t, err)
	second, err := stats.CalculateUserStatistics(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, first.TotalTasks)

	allFirst, err := stats.GetAllStatistics(ctx)
	require.NoError(t, err)
	allSecond, err := stats.GetAllStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, allFirst, allSecond)
}
