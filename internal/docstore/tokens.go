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

// TokenCollection implements repository.TokenStore.
type TokenCollection struct{ s *Store }

func (c *TokenCollection) StoreRefresh(ctx context.Context, userID int64, tokenHash string, exp time.Time) error {
	id, err := c.s.nextID(ctx, TokensCollection)
	if err != nil {
		return err
	}
	_, err = c.s.tokens.InsertOne(ctx, model.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (c *TokenCollection) ValidateRefresh(ctx context.Context, tokenHash string) (int64, error) {
	var rt model.RefreshToken
	err := c.s.tokens.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&rt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, repository.ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}
	if rt.RevokedAt != nil || time.Now().UTC().After(rt.ExpiresAt) {
		return 0, repository.ErrTokenInvalid
	}
	return rt.UserID, nil
}

func (c *TokenCollection) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := c.s.tokens.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash, "revoked_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}})
	return err
}

func (c *TokenCollection) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := c.s.tokens.UpdateMany(ctx,
		bson.M{"user_id": userID, "revoked_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}})
	return err
}
