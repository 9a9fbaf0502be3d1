package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"xclone/internal/database"
	"xclone/internal/model"
)

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{coll: db.Collection(database.CollectionUsers)}
}

var summaryProjection = bson.D{
	{Key: "username", Value: 1},
	{Key: "fullName", Value: 1},
	{Key: "profileImg", Value: 1},
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	now := storeNow()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	// Edge arrays must exist as arrays for $addToSet/$pull to apply.
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.LikedPosts == nil {
		user.LikedPosts = []primitive.ObjectID{}
	}

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if dup := duplicateUserError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var user model.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *userRepository) exists(ctx context.Context, filter bson.D) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) GetSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	result := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(summaryProjection))
	if err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}

	var summaries []model.UserSummary
	if err := cur.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode user summaries: %w", err)
	}
	for _, s := range summaries {
		result[s.ID] = s
	}
	return result, nil
}

func (r *userRepository) Update(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	set := bson.D{{Key: "updatedAt", Value: storeNow()}}
	appendSet := func(key string, v *string) {
		if v != nil {
			set = append(set, bson.E{Key: key, Value: *v})
		}
	}
	appendSet("fullName", patch.FullName)
	appendSet("email", patch.Email)
	appendSet("username", patch.Username)
	appendSet("bio", patch.Bio)
	appendSet("link", patch.Link)
	appendSet("password", patch.Password)
	appendSet("profileImg", patch.ProfileImg)
	appendSet("profileImgKey", patch.ProfileImgKey)
	appendSet("coverImg", patch.CoverImg)
	appendSet("coverImgKey", patch.CoverImgKey)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user model.User
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrUserNotFound
		}
		if dup := duplicateUserError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Sample(ctx context.Context, excludeID primitive.ObjectID, size int) ([]model.User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}}}}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
		{{Key: "$project", Value: bson.D{{Key: "password", Value: 0}}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sample users: %w", err)
	}

	var users []model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode sampled users: %w", err)
	}
	return users, nil
}

func (r *userRepository) AddLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$addToSet", "likedPosts", postID)
}

func (r *userRepository) RemoveLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return updateUserSet(ctx, r.coll, userID, "$pull", "likedPosts", postID)
}

func (r *userRepository) RemoveLikedPostFromAll(ctx context.Context, postID primitive.ObjectID) error {
	filter := bson.D{{Key: "likedPosts", Value: postID}}
	update := bson.D{{Key: "$pull", Value: bson.D{{Key: "likedPosts", Value: postID}}}}
	if _, err := r.coll.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove liked post from users: %w", err)
	}
	return nil
}

// updateUserSet applies a single-field set operator ($addToSet or $pull) to one user.
func updateUserSet(ctx context.Context, coll *mongo.Collection, userID primitive.ObjectID, op, field string, value primitive.ObjectID) error {
	update := bson.D{{Key: op, Value: bson.D{{Key: field, Value: value}}}}
	res, err := coll.UpdateByID(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", strings.TrimPrefix(op, "$"), field, err)
	}
	if res.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// duplicateUserError maps a unique index violation to the matching Conflict.
func duplicateUserError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if strings.Contains(err.Error(), "users_email_unique") {
		return model.ErrEmailExists
	}
	return model.ErrUsernameExists
}

// storeNow truncates to the store's millisecond precision so values read back
// compare equal to the ones written.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
