package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// ColumnCollection implements repository.ColumnStore.
type ColumnCollection struct{ s *Store }

func (c *ColumnCollection) Create(ctx context.Context, col *model.KanbanColumn) error {
	id, err := c.s.nextID(ctx, ColumnsCollection)
	if err != nil {
		return err
	}
	col.ID = id
	if _, err := c.s.columns.InsertOne(ctx, col); err != nil {
		col.ID = 0
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

// CreateMany reserves one block of ids and inserts all columns with a
// single insert_many.
func (c *ColumnCollection) CreateMany(ctx context.Context, cols []*model.KanbanColumn) error {
	if len(cols) == 0 {
		return nil
	}
	first, err := c.s.reserveIDs(ctx, ColumnsCollection, len(cols))
	if err != nil {
		return err
	}
	docs := make([]interface{}, len(cols))
	for i, col := range cols {
		col.ID = first + int64(i)
		docs[i] = col
	}
	if _, err := c.s.columns.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert columns: %w", err)
	}
	return nil
}

func (c *ColumnCollection) GetByID(ctx context.Context, id int64) (*model.KanbanColumn, error) {
	var col model.KanbanColumn
	err := c.s.columns.FindOne(ctx, bson.M{"id": id}).Decode(&col)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrColumnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get column: %w", err)
	}
	col.Tasks = []model.Task{}
	return &col, nil
}

func (c *ColumnCollection) List(ctx context.Context) ([]model.KanbanColumn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "id", Value: 1}})
	cur, err := c.s.columns.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find columns: %w", err)
	}
	cols := []model.KanbanColumn{}
	if err := cur.All(ctx, &cols); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	for i := range cols {
		cols[i].Tasks = []model.Task{}
	}
	return cols, nil
}

func (c *ColumnCollection) Count(ctx context.Context) (int64, error) {
	return c.s.columns.CountDocuments(ctx, bson.M{})
}

func (c *ColumnCollection) Update(ctx context.Context, col *model.KanbanColumn) error {
	res, err := c.s.columns.UpdateOne(ctx, bson.M{"id": col.ID}, bson.M{"$set": bson.M{
		"title":      col.Title,
		"order":      col.Order,
		"updated_at": col.UpdatedAt.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrColumnNotFound
	}
	return nil
}

// Delete checks for referencing tasks and then deletes.  A task moved in
// between the two steps is left pointing at a missing column.
func (c *ColumnCollection) Delete(ctx context.Context, id int64) error {
	if _, err := c.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := c.s.tasks.CountDocuments(ctx, bson.M{"column_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count column tasks: %w", err)
	}
	if n > 0 {
		return repository.ErrColumnNotEmpty
	}
	res, err := c.s.columns.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrColumnNotFound
	}
	return nil
}
