package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"xclone/internal/database"
	"xclone/internal/model"
)

// followRepository stores edges as the followers/following arrays on user
// documents. $addToSet and $pull keep each array a set, so every write is
// idempotent and safe to replay during repair.
type followRepository struct {
	coll *mongo.Collection
}

func NewFollowRepository(db *mongo.Database) FollowRepository {
	return &followRepository{coll: db.Collection(database.CollectionUsers)}
}

func (r *followRepository) AddFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$addToSet", "followers", followerID)
}

func (r *followRepository) RemoveFollower(ctx context.Context, userID, followerID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$pull", "followers", followerID)
}

func (r *followRepository) AddFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$addToSet", "following", followeeID)
}

func (r *followRepository) RemoveFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$pull", "following", followeeID)
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return r.edgeIDs(ctx, userID, "followers")
}

func (r *followRepository) GetFolloweeIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return r.edgeIDs(ctx, userID, "following")
}

// edgeIDs loads a single edge array without pulling the rest of the document.
func (r *followRepository) edgeIDs(ctx context.Context, userID primitive.ObjectID, field string) ([]primitive.ObjectID, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: field, Value: 1}})

	var doc struct {
		Followers []primitive.ObjectID `bson:"followers"`
		Following []primitive.ObjectID `bson:"following"`
	}
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", field, err)
	}

	if field == "followers" {
		return doc.Followers, nil
	}
	return doc.Following, nil
}
