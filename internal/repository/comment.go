package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"xclone/internal/database"
	"xclone/internal/model"
)

// commentRepository writes to the comments array embedded in post documents.
type commentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(db *mongo.Database) CommentRepository {
	return &commentRepository{coll: db.Collection(database.CollectionPosts)}
}

func (r *commentRepository) Append(ctx context.Context, postID primitive.ObjectID, comment *model.Comment) error {
	now := storeNow()
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	comment.CreatedAt = now

	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "comments", Value: comment}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
	}
	res, err := r.coll.UpdateByID(ctx, postID, update)
	if err != nil {
		return fmt.Errorf("failed to append comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrPostNotFound
	}
	return nil
}
