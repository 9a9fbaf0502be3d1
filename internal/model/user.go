package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account document in the users collection.
type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username      string               `bson:"username" json:"username"`
	FullName      string               `bson:"fullName" json:"full_name"`
	Email         string               `bson:"email" json:"email"`
	Password      string               `bson:"password" json:"-"` // "-" hides from JSON output
	Bio           string               `bson:"bio" json:"bio"`
	Link          string               `bson:"link" json:"link"`
	ProfileImg    string               `bson:"profileImg" json:"profile_img"`
	ProfileImgKey string               `bson:"profileImgKey,omitempty" json:"-"`
	CoverImg      string               `bson:"coverImg" json:"cover_img"`
	CoverImgKey   string               `bson:"coverImgKey,omitempty" json:"-"`
	Followers     []primitive.ObjectID `bson:"followers" json:"followers"`
	Following     []primitive.ObjectID `bson:"following" json:"following"`
	LikedPosts    []primitive.ObjectID `bson:"likedPosts" json:"liked_posts"`
	CreatedAt     time.Time            `bson:"createdAt" json:"created_at"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updated_at"`
}

// Sanitize blanks the credential so the value is safe to hand to a client
// even if a serializer ignores the json tag.
func (u *User) Sanitize() *User {
	if u != nil {
		u.Password = ""
	}
	return u
}

// IsFollowing reports whether u follows id.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return containsID(u.Following, id)
}

// HasFollower reports whether id follows u.
func (u *User) HasFollower(id primitive.ObjectID) bool {
	return containsID(u.Followers, id)
}

// Summary returns the display fields used to enrich posts and notifications.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		ProfileImg: u.ProfileImg,
	}
}

// SignupRequest represents the data needed to create an account
type SignupRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileUpdate is an explicit partial update. A nil field was not sent and is
// left untouched; a non-nil field is applied, including the empty string,
// which clears the stored value.
type ProfileUpdate struct {
	FullName        *string `json:"full_name"`
	Email           *string `json:"email"`
	Username        *string `json:"username"`
	Bio             *string `json:"bio"`
	Link            *string `json:"link"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
	ProfileImg      *string `json:"profile_img"` // base64 data URL, "" clears
	CoverImg        *string `json:"cover_img"`   // base64 data URL, "" clears
}

// UserPatch is the set of stored fields a profile update changes.
// Only non-nil fields are written.
type UserPatch struct {
	FullName      *string
	Email         *string
	Username      *string
	Bio           *string
	Link          *string
	Password      *string
	ProfileImg    *string
	ProfileImgKey *string
	CoverImg      *string
	CoverImgKey   *string
}

// IsEmpty reports whether the patch would change nothing.
func (p UserPatch) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil && p.Username == nil && p.Bio == nil &&
		p.Link == nil && p.Password == nil && p.ProfileImg == nil && p.ProfileImgKey == nil &&
		p.CoverImg == nil && p.CoverImgKey == nil
}

const (
	MinPasswordLength = 6
	MaxBioLength      = 160
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = newError(KindNotFound, "User not found")

	// ErrUsernameExists is returned when attempting to use a taken username
	ErrUsernameExists = newError(KindConflict, "Username is already taken")

	// ErrEmailExists is returned when attempting to use a taken email
	ErrEmailExists = newError(KindConflict, "Email is already taken")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = newError(KindUnauthorized, "Invalid username or password")

	ErrUsernameRequired         = newError(KindValidation, "Username is required")
	ErrFullNameRequired         = newError(KindValidation, "Full name is required")
	ErrInvalidEmail             = newError(KindValidation, "Invalid email format")
	ErrPasswordTooShort         = newError(KindValidation, "Password must be at least 6 characters long")
	ErrPasswordChangeIncomplete = newError(KindValidation, "Please provide both current password and new password")
	ErrCurrentPasswordIncorrect = newError(KindValidation, "Current password is incorrect")
	ErrBioTooLong               = newError(KindValidation, "Bio must be at most 160 characters")
)

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
