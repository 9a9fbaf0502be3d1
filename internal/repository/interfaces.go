package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/cache"
	"xclone/internal/model"
)

type UserRepository interface {
	// Create inserts a user. Duplicate username/email surface as
	// model.ErrUsernameExists / model.ErrEmailExists.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// GetSummaries batch-loads display fields for the given ids.
	GetSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error)
	// Update applies the non-nil fields of patch and returns the updated user.
	Update(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error)
	// Sample draws up to size random users other than excludeID.
	Sample(ctx context.Context, excludeID primitive.ObjectID, size int) ([]model.User, error)
	AddLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error
	RemoveLikedPost(ctx context.Context, userID, postID primitive.ObjectID) error
	RemoveLikedPostFromAll(ctx context.Context, postID primitive.ObjectID) error
}

// FollowRepository maintains the two materialized copies of the follow edge
// stored on user documents. Every method touches exactly one document.
type FollowRepository interface {
	AddFollower(ctx context.Context, userID, followerID primitive.ObjectID) error
	RemoveFollower(ctx context.Context, userID, followerID primitive.ObjectID) error
	AddFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error
	RemoveFollowing(ctx context.Context, userID, followeeID primitive.ObjectID) error
	GetFollowerIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	GetFolloweeIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// PostQuery selects posts newest first. A nil AuthorIDs means every author;
// an empty non-nil slice matches nothing.
type PostQuery struct {
	AuthorIDs []primitive.ObjectID
	Before    *model.PostCursor
	Limit     int
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, postID primitive.ObjectID) (*model.Post, error)
	// GetByIDs returns posts in the order of postIDs, skipping missing ones.
	GetByIDs(ctx context.Context, postIDs []primitive.ObjectID) ([]model.Post, error)
	List(ctx context.Context, q PostQuery) ([]model.Post, error)
	Delete(ctx context.Context, postID primitive.ObjectID) error
	AddLike(ctx context.Context, postID, userID primitive.ObjectID) error
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error
	// GetFeedPostScores returns (id, createdAt) pairs for cache warming.
	GetFeedPostScores(ctx context.Context, authorIDs []primitive.ObjectID, limit int) ([]cache.PostScore, error)
}

type CommentRepository interface {
	// Append pushes a comment onto the post's comment sequence.
	Append(ctx context.Context, postID primitive.ObjectID, comment *model.Comment) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Notification, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error
	DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// Delete removes one notification addressed to userID.
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID, token, platform string) error
	GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, userID, token string) error
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}
