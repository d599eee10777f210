package service

import (
	"context"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// Weights of the productivity score.  Scores are compared across users,
// so these are fixed.
const (
	completionWeight = 0.6
	priorityWeight   = 0.4

	highWeight   = 0.5
	mediumWeight = 0.3
	lowWeight    = 0.2
)

// StatisticsService derives productivity figures from the task store.
// Nothing is cached; every call reads the tasks again.
type StatisticsService struct {
	Tasks    repository.TaskStore
	Users    repository.UserStore
	Now      func() time.Time
	Location *time.Location // calendar for streak days
}

func NewStatisticsService(tasks repository.TaskStore, users repository.UserStore, loc *time.Location) *StatisticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatisticsService{Tasks: tasks, Users: users, Now: utcNow, Location: loc}
}

// CalculateUserStatistics computes statistics over the tasks the user
// created or is assigned to.  An unknown user simply has no tasks.
func (s *StatisticsService) CalculateUserStatistics(ctx context.Context, userID int64) (model.UserStatistics, error) {
	tasks, err := s.Tasks.ListForUser(ctx, userID)
	if err != nil {
		return model.UserStatistics{}, err
	}
	return ComputeStatistics(userID, tasks, s.Now(), s.Location), nil
}

// GetAllStatistics returns one entry per user, in store order.
func (s *StatisticsService) GetAllStatistics(ctx context.Context) ([]model.UserStatistics, error) {
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserStatistics, 0, len(users))
	for _, u := range users {
		st, err := s.CalculateUserStatistics(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ComputeStatistics is the pure aggregation behind
// CalculateUserStatistics.  now anchors last_activity for an empty task
// set and the streak walk, which uses calendar days in loc.
func ComputeStatistics(userID int64, tasks []model.Task, now time.Time, loc *time.Location) model.UserStatistics {
	st := model.UserStatistics{
		UserID:          userID,
		TotalTasks:      len(tasks),
		TasksByPriority: make(map[string]int, len(model.Priorities)),
		TasksByStatus:   make(map[string]int, len(model.Statuses)),
		LastActivity:    now,
	}
	for _, p := range model.Priorities {
		st.TasksByPriority[p] = 0
	}
	for _, s := range model.Statuses {
		st.TasksByStatus[s] = 0
	}
	if len(tasks) == 0 {
		return st
	}

	var (
		hours  float64
		timed  int
		latest time.Time
		active = make(map[time.Time]bool)
	)
	for _, t := range tasks {
		st.TasksByPriority[t.Priority]++
		st.TasksByStatus[t.Status]++
		if t.Status == model.StatusCompleted {
			st.CompletedTasks++
			if t.CompletedAt != nil && !t.CreatedAt.IsZero() {
				hours += t.CompletedAt.Sub(t.CreatedAt).Hours()
				timed++
			}
		}
		if t.UpdatedAt.After(latest) {
			latest = t.UpdatedAt
		}
		active[calendarDay(t.UpdatedAt, loc)] = true
	}
	st.PendingTasks = st.TotalTasks - st.CompletedTasks
	st.LastActivity = latest
	if timed > 0 {
		st.AverageCompletionTime = hours / float64(timed)
	}

	// Every counted day is a distinct active day, so the walk is bounded
	// by len(active).
	day := calendarDay(now, loc)
	for st.StreakDays < len(active) && active[day] {
		st.StreakDays++
		day = day.AddDate(0, 0, -1)
	}

	total := float64(st.TotalTasks)
	completionRate := float64(st.CompletedTasks) / total
	priorityScore := (highWeight*float64(st.TasksByPriority[model.PriorityHigh]) +
		mediumWeight*float64(st.TasksByPriority[model.PriorityMedium]) +
		lowWeight*float64(st.TasksByPriority[model.PriorityLow])) / total
	st.ProductivityScore = (completionWeight*completionRate + priorityWeight*priorityScore) * 100
	return st
}

// calendarDay maps t to midnight UTC of its calendar date in loc, giving
// a comparable key that steps cleanly by AddDate.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
