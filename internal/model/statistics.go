package model

import "time"

// UserStatistics is a productivity snapshot derived from a user's tasks.
// It is recomputed on every request and never stored.
type UserStatistics struct {
	UserID                int64          `json:"user_id"`
	TotalTasks            int            `json:"total_tasks"`
	CompletedTasks        int            `json:"completed_tasks"`
	PendingTasks          int            `json:"pending_tasks"`
	AverageCompletionTime float64        `json:"average_completion_time"` // hours
	TasksByPriority       map[string]int `json:"tasks_by_priority"`
	TasksByStatus         map[string]int `json:"tasks_by_status"`
	LastActivity          time.Time      `json:"last_activity"`
	StreakDays            int            `json:"streak_days"`
	ProductivityScore     float64        `json:"productivity_score"`
}
