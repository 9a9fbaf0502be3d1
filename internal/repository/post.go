package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"xclone/internal/cache"
	"xclone/internal/database"
	"xclone/internal/model"
)

type postRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{coll: db.Collection(database.CollectionPosts)}
}

// newestFirst is the feed order: creation time, then id, both descending.
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	now := storeNow()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []model.Comment{}
	}

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, postID primitive.ObjectID) (*model.Post, error) {
	var post model.Post
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: postID}}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, postIDs []primitive.ObjectID) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	cur, err := r.coll.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: postIDs}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by ids: %w", err)
	}

	var found []model.Post
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	// $in does not preserve order; restore the caller's.
	byID := make(map[primitive.ObjectID]model.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]model.Post, 0, len(found))
	for _, id := range postIDs {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// List returns up to q.Limit posts newest first, starting strictly after q.Before.
func (r *postRepository) List(ctx context.Context, q PostQuery) ([]model.Post, error) {
	if q.AuthorIDs != nil && len(q.AuthorIDs) == 0 {
		return []model.Post{}, nil
	}

	filter := bson.D{}
	if q.AuthorIDs != nil {
		filter = append(filter, bson.E{Key: "user", Value: bson.D{{Key: "$in", Value: q.AuthorIDs}}})
	}
	if q.Before != nil {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "createdAt", Value: bson.D{{Key: "$lt", Value: q.Before.CreatedAt}}}},
			bson.D{
				{Key: "createdAt", Value: q.Before.CreatedAt},
				{Key: "_id", Value: bson.D{{Key: "$lt", Value: q.Before.ID}}},
			},
		}})
	}

	opts := options.Find().SetSort(newestFirst).SetLimit(int64(q.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := []model.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, postID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: postID}})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	return r.updateLikes(ctx, postID, "$addToSet", userID)
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	return r.updateLikes(ctx, postID, "$pull", userID)
}

func (r *postRepository) updateLikes(ctx context.Context, postID primitive.ObjectID, op string, userID primitive.ObjectID) error {
	update := bson.D{{Key: op, Value: bson.D{{Key: "likes", Value: userID}}}}
	res, err := r.coll.UpdateByID(ctx, postID, update)
	if err != nil {
		return fmt.Errorf("failed to update likes: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

// GetFeedPostScores fetches only ids and timestamps for cache warming.
func (r *postRepository) GetFeedPostScores(ctx context.Context, authorIDs []primitive.ObjectID, limit int) ([]cache.PostScore, error) {
	if len(authorIDs) == 0 {
		return []cache.PostScore{}, nil
	}

	filter := bson.D{{Key: "user", Value: bson.D{{Key: "$in", Value: authorIDs}}}}
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "createdAt", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed post ids: %w", err)
	}

	var rows []struct {
		ID        primitive.ObjectID `bson:"_id"`
		CreatedAt primitive.DateTime `bson:"createdAt"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode feed post ids: %w", err)
	}

	scores := make([]cache.PostScore, len(rows))
	for i, row := range rows {
		scores[i] = cache.PostScore{PostID: row.ID.Hex(), Timestamp: int64(row.CreatedAt)}
	}
	return scores, nil
}
