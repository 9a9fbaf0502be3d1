package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthContext identifies the caller of an operation. Handlers build it from
// the session and pass it down explicitly.
type AuthContext struct {
	UserID primitive.ObjectID
}

// UserSummary holds the display fields attached to posts, comments and notifications.
type UserSummary struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Username   string             `bson:"username" json:"username"`
	FullName   string             `bson:"fullName" json:"full_name"`
	ProfileImg string             `bson:"profileImg" json:"profile_img"`
}

// FollowResult is the state of the edge after a toggle.
type FollowResult struct {
	Following bool   `json:"following"`
	Message   string `json:"message"`
}

type FollowListResponse struct {
	Users []UserSummary `json:"users"`
}

var (
	ErrCannotFollowSelf = newError(KindValidation, "You can't follow/unfollow yourself")
)
