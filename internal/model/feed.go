package model

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedKind selects which posts a feed contains.
type FeedKind string

const (
	FeedGlobal    FeedKind = "global"
	FeedFollowing FeedKind = "following"
	FeedByUser    FeedKind = "user"
	FeedLikedBy   FeedKind = "likes"
)

// FeedView is a feed kind plus the subject it needs: a username for
// FeedByUser, a user id for FeedLikedBy.
type FeedView struct {
	Kind     FeedKind
	Username string
	UserID   primitive.ObjectID
}

// GlobalView is every post, newest first.
func GlobalView() FeedView { return FeedView{Kind: FeedGlobal} }

// FollowingView is posts by the accounts the caller follows.
func FollowingView() FeedView { return FeedView{Kind: FeedFollowing} }

// ByUserView is posts authored by username.
func ByUserView(username string) FeedView {
	return FeedView{Kind: FeedByUser, Username: username}
}

// LikedByView is posts liked by userID, most recent like first.
func LikedByView(userID primitive.ObjectID) FeedView {
	return FeedView{Kind: FeedLikedBy, UserID: userID}
}

// FeedParams carries pagination for a feed request.
type FeedParams struct {
	Cursor *string
	Limit  int
}

const (
	// FeedDefaultLimit is the default number of posts per page
	FeedDefaultLimit = 10

	// FeedMaxLimit is the maximum number of posts per page
	FeedMaxLimit = 50
)

var (
	ErrInvalidFeedView = newError(KindValidation, "Unknown feed type")
)

// PostCursor marks a position in a newest-first post list. Ties on
// CreatedAt are broken by ID, both descending.
type PostCursor struct {
	CreatedAt time.Time
	ID        primitive.ObjectID
}

// CursorAfter returns the cursor positioned just past p.
func CursorAfter(p Post) PostCursor {
	return PostCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// String encodes the cursor as "<hex id>:<unix millis>".
func (c PostCursor) String() string {
	return c.ID.Hex() + ":" + strconv.FormatInt(c.CreatedAt.UnixMilli(), 10)
}

// ParsePostCursor decodes a cursor produced by PostCursor.String.
func ParsePostCursor(s string) (*PostCursor, error) {
	idPart, tsPart, ok := strings.Cut(s, ":")
	if !ok {
		return nil, ErrInvalidCursor
	}
	id, err := primitive.ObjectIDFromHex(idPart)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ms, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil || ms < 0 {
		return nil, ErrInvalidCursor
	}
	return &PostCursor{CreatedAt: time.UnixMilli(ms).UTC(), ID: id}, nil
}
