// Package queue carries task activity over RabbitMQ: the event payload,
// a publisher used by the services and the consumer that appends each
// event to logs/activity.log.
package queue

// ActivityQueue is the durable queue every event is routed to.
const ActivityQueue = "task.activity"

// Event types.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
	TaskMoved   = "task.moved"
)

// TaskEvent describes one change to a task.  It holds enough for the log
// consumer to write a line without querying the store.
type TaskEvent struct {
	Type         string `json:"type"`
	TaskID       int64  `json:"task_id"`
	Title        string `json:"title"`
	ActorID      int64  `json:"actor_id"`
	Status       string `json:"status,omitempty"`
	ColumnID     int64  `json:"column_id"`
	FromColumnID int64  `json:"from_column_id,omitempty"` // task.moved only
	OccurredAt   string `json:"occurred_at"`              // RFC 3339, UTC
}
