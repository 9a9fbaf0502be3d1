package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a document in the posts collection. Likes and comments are embedded.
type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID   `bson:"user" json:"user_id"`
	Text      string               `bson:"text,omitempty" json:"text,omitempty"`
	Img       string               `bson:"img,omitempty" json:"img,omitempty"`
	ImgKey    string               `bson:"imgKey,omitempty" json:"-"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments  []Comment            `bson:"comments" json:"comments"`
	CreatedAt time.Time            `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updated_at"`

	// Joined field (not stored)
	Author *UserSummary `bson:"-" json:"author,omitempty"`
}

// IsLikedBy reports whether userID is in the post's like set.
func (p *Post) IsLikedBy(userID primitive.ObjectID) bool {
	return containsID(p.Likes, userID)
}

// FeedResponse is one page of a feed. Pass NextCursor back to continue.
type FeedResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Text string `json:"text"`
	Img  string `json:"img"` // base64 data URL
}

// LikeResult is the state of the like set after a toggle.
type LikeResult struct {
	Liked bool                 `json:"liked"`
	Likes []primitive.ObjectID `json:"likes"`
}

// Post constants
const (
	MaxPostTextLength = 2200
	PostMediaFolder   = "posts"
	PostImageMaxSide  = 1080
)

// Post errors
var (
	ErrPostNotFound = newError(KindNotFound, "Post not found")
	ErrNotPostOwner = newError(KindForbidden, "You are not authorized to delete this post")
	ErrPostEmpty    = newError(KindValidation, "Post must have text or image")
	ErrTextTooLong  = newError(KindValidation, "Post text too long (max 2200 characters)")
)
