package model

import "time"

// KanbanColumn is a board column.  Columns render left to right by
// ascending Order; equal orders fall back to ascending ID.  Tasks is
// filled on read and is never persisted.
type KanbanColumn struct {
	ID        int64     `json:"id" bson:"id"`
	Title     string    `json:"title" bson:"title"`
	Order     int       `json:"order" bson:"order"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Tasks     []Task    `json:"tasks" bson:"-"`
}
