package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Priority levels accepted for a task.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Status values accepted for a task.  The status is independent of the
// Kanban column a task sits in; moving a task never changes it.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Priorities lists every priority bucket in a stable order.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Statuses lists every status bucket in a stable order.
var Statuses = []string{StatusPending, StatusInProgress, StatusCompleted}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// Task represents a unit of work stored in the `tasks` table or the
// `tasks` collection.
//
// Fields:
//	ID          – sequential identifier assigned by the store.
//	ColumnID    – Kanban column holding the task (0 when not placed).
//	CreatedBy   – user who created the task.
//	AssignedTo  – users the task is assigned to.
//	CompletedAt – set while Status is completed, nil otherwise.
type Task struct {
	ID          int64      `json:"id" bson:"id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Priority    string     `json:"priority" bson:"priority"`
	Status      string     `json:"status" bson:"status"`
	DueDate     *time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	ColumnID    int64      `json:"column_id" bson:"column_id"`
	CreatedBy   int64      `json:"created_by" bson:"created_by"`
	AssignedTo  Assignees  `json:"assigned_to" bson:"assigned_to"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// VisibleTo reports whether the user created the task or is one of its
// assignees.
func (t *Task) VisibleTo(userID int64) bool {
	return t.CreatedBy == userID || t.AssignedTo.Contains(userID)
}

// Assignees is the list of users a task is assigned to.  On input it
// accepts either a single id or an array of ids.
type Assignees []int64

// Contains reports whether id is in the list.
func (a Assignees) Contains(id int64) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}

// MarshalJSON always renders an array, never null.
func (a Assignees) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int64(a))
}

// UnmarshalJSON accepts `3`, `[3, 4]` or `null`.
func (a *Assignees) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = nil
		return nil
	}
	if b[0] == '[' {
		var ids []int64
		if err := json.Unmarshal(b, &ids); err != nil {
			return fmt.Errorf("assigned_to: %w", err)
		}
		*a = ids
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("assigned_to: expected user id or list of user ids")
	}
	*a = Assignees{id}
	return nil
}
