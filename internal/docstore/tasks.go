package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// TaskCollection implements repository.TaskStore.
type TaskCollection struct{ s *Store }

func (c *TaskCollection) Create(ctx context.Context, t *model.Task) error {
	id, err := c.s.nextID(ctx, TasksCollection)
	if err != nil {
		return err
	}
	t.ID = id
	t.AssignedTo = repository.DistinctIDs(t.AssignedTo)
	if _, err := c.s.tasks.InsertOne(ctx, t); err != nil {
		t.ID = 0
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (c *TaskCollection) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := c.s.tasks.FindOne(ctx, bson.M{"id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	normalizeTask(&t)
	return &t, nil
}

func (c *TaskCollection) List(ctx context.Context) ([]model.Task, error) {
	return c.find(ctx, bson.M{})
}

func (c *TaskCollection) ListForUser(ctx context.Context, userID int64) ([]model.Task, error) {
	return c.find(ctx, bson.M{"$or": bson.A{
		bson.M{"created_by": userID},
		bson.M{"assigned_to": userID},
	}})
}

func (c *TaskCollection) ListByColumn(ctx context.Context, columnID int64) ([]model.Task, error) {
	return c.find(ctx, bson.M{"column_id": columnID})
}

func (c *TaskCollection) find(ctx context.Context, filter bson.M) ([]model.Task, error) {
	cur, err := c.s.tasks.Find(ctx, filter, byID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	tasks := []model.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

// Update replaces the stored document; fields left nil disappear.
func (c *TaskCollection) Update(ctx context.Context, t *model.Task) error {
	t.AssignedTo = repository.DistinctIDs(t.AssignedTo)
	res, err := c.s.tasks.ReplaceOne(ctx, bson.M{"id": t.ID}, t)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

func (c *TaskCollection) MoveToColumn(ctx context.Context, id, columnID int64, at time.Time) error {
	res, err := c.s.tasks.UpdateOne(ctx, bson.M{"id": id},
		bson.M{"$set": bson.M{"column_id": columnID, "updated_at": at.UTC()}})
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

func (c *TaskCollection) Delete(ctx context.Context, id int64) error {
	res, err := c.s.tasks.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

func normalizeTask(t *model.Task) {
	if t.AssignedTo == nil {
		t.AssignedTo = model.Assignees{}
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
}
