// Package docstore implements the repository contracts on MongoDB.
// Documents keep the integer ids the rest of the system uses; a
// `counters` collection hands them out with an atomic $inc.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/taskboard/internal/repository"
)

// Collection names.
const (
	TasksCollection    = "tasks"
	ColumnsCollection  = "kanban_columns"
	UsersCollection    = "users"
	TokensCollection   = "refresh_tokens"
	CountersCollection = "counters"
)

// Connect dials uri and pings the deployment.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Store owns the collections of one database.
type Store struct {
	db       *mongo.Database
	tasks    *mongo.Collection
	columns  *mongo.Collection
	users    *mongo.Collection
	tokens   *mongo.Collection
	counters *mongo.Collection
}

// New prepares indexes and id counters on db.
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{
		db:       db,
		tasks:    db.Collection(TasksCollection),
		columns:  db.Collection(ColumnsCollection),
		users:    db.Collection(UsersCollection),
		tokens:   db.Collection(TokensCollection),
		counters: db.Collection(CountersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	for _, c := range []*mongo.Collection{s.tasks, s.columns, s.users, s.tokens} {
		if err := s.seedCounter(ctx, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Stores exposes the store as repository contracts.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Tasks:   &TaskCollection{s: s},
		Columns: &ColumnCollection{s: s},
		Users:   &UserCollection{s: s},
		Tokens:  &TokenCollection{s: s},
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	plan := map[*mongo.Collection][]mongo.IndexModel{
		s.tasks: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "column_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
			{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		},
		s.columns: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "order", Value: 1}, {Key: "id", Value: 1}}},
		},
		s.users: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		},
		s.tokens: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}
	for coll, models := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// seedCounter raises the counter to the current max id so that data
// written before the counter existed never collides.
func (s *Store) seedCounter(ctx context.Context, c *mongo.Collection) error {
	var top struct {
		ID int64 `bson:"id"`
	}
	err := c.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})).Decode(&top)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("seed counter %s: %w", c.Name(), err)
	}
	_, err = s.counters.UpdateOne(ctx,
		bson.M{"_id": c.Name()},
		bson.M{"$max": bson.M{"seq": top.ID}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("seed counter %s: %w", c.Name(), err)
	}
	return nil
}

// reserveIDs atomically advances the named counter by n and returns the
// first id of the reserved block.
func (s *Store) reserveIDs(ctx context.Context, name string, n int) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", name, err)
	}
	return out.Seq - int64(n) + 1, nil
}

func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	return s.reserveIDs(ctx, name, 1)
}

// duplicateUserErr maps a unique index violation on users to the
// matching sentinel.
func duplicateUserErr(err error) error {
	if strings.Contains(err.Error(), "username") {
		return repository.ErrUsernameExists
	}
	return repository.ErrEmailExists
}

var byID = options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
