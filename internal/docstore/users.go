package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// UserCollection implements repository.UserStore.
type UserCollection struct{ s *Store }

func (c *UserCollection) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	id, err := c.s.nextID(ctx, UsersCollection)
	if err != nil {
		return err
	}
	u.ID = id
	if _, err := c.s.users.InsertOne(ctx, u); err != nil {
		u.ID = 0
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUserErr(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (c *UserCollection) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return c.findOne(ctx, bson.M{"id": id})
}

func (c *UserCollection) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return c.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (c *UserCollection) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return c.findOne(ctx, bson.M{"username": username})
}

func (c *UserCollection) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := c.s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (c *UserCollection) List(ctx context.Context) ([]model.User, error) {
	cur, err := c.s.users.Find(ctx, bson.M{}, byID)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (c *UserCollection) CountByIDs(ctx context.Context, ids []int64) (int64, error) {
	ids = repository.DistinctIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	return c.s.users.CountDocuments(ctx, bson.M{"id": bson.M{"$in": ids}})
}

func (c *UserCollection) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := c.s.users.ReplaceOne(ctx, bson.M{"id": u.ID}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUserErr(err)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (c *UserCollection) Delete(ctx context.Context, id int64) error {
	res, err := c.s.users.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrUserNotFound
	}
	if _, err := c.s.tokens.DeleteMany(ctx, bson.M{"user_id": id}); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
