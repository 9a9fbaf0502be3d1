package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is embedded in a post. Comments are append-only.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Text      string             `bson:"text" json:"text"`
	UserID    primitive.ObjectID `bson:"user" json:"user_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`

	Author *UserSummary `bson:"-" json:"author,omitempty"` // Joined field
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// Comment constraints
const (
	MaxCommentLength = 2200
)

// Comment errors
var (
	ErrContentRequired = newError(KindValidation, "Text field is required")
	ErrContentTooLong  = newError(KindValidation, "Comment too long (max 2200 characters)")
)
