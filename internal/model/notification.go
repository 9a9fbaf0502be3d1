package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationTypeFollow  = "follow"
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
)

// Notification represents a single notification document.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type      string              `bson:"type" json:"type"`
	From      primitive.ObjectID  `bson:"from" json:"from_id"`
	To        primitive.ObjectID  `bson:"to" json:"-"` // Recipient
	PostID    *primitive.ObjectID `bson:"post,omitempty" json:"post_id,omitempty"`
	Read      bool                `bson:"read" json:"read"`
	CreatedAt time.Time           `bson:"createdAt" json:"created_at"`

	// Joined field for display
	FromUser *UserSummary `bson:"-" json:"from,omitempty"`
}

// NotificationListResponse is the notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unread_count"`
}

var (
	ErrNotificationNotFound = newError(KindNotFound, "Notification not found")
)
