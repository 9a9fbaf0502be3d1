package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"xclone/internal/model"
	"xclone/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserService handles accounts and profiles.
type UserService struct {
	repo  repository.UserRepository
	media MediaStore // nil rejects image updates
	log   zerolog.Logger
}

func NewUserService(repo repository.UserRepository, media MediaStore) *UserService {
	return &UserService{
		repo:  repo,
		media: media,
		log:   log.With().Str("component", "UserService").Logger(),
	}
}

// Signup creates an account. The unique indexes remain the final guard
// against concurrent signups with the same username or email.
func (s *UserService) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	fullName := strings.TrimSpace(req.FullName)
	email := normalizeEmail(req.Email)

	if username == "" {
		return nil, model.ErrUsernameRequired
	}
	if fullName == "" {
		return nil, model.ErrFullNameRequired
	}
	if !emailPattern.MatchString(email) {
		return nil, model.ErrInvalidEmail
	}
	if utf8.RuneCountInString(req.Password) < model.MinPasswordLength {
		return nil, model.ErrPasswordTooShort
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameExists
	}
	exists, err = s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:   username,
		FullName:   fullName,
		Email:      email,
		Password:   string(hashed),
		Followers:  []primitive.ObjectID{},
		Following:  []primitive.ObjectID{},
		LikedPosts: []primitive.ObjectID{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user", user.ID.Hex()).Str("username", username).Msg("Account created")
	return user.Sanitize(), nil
}

// Login authenticates by username and password. Unknown users and wrong
// passwords get the same error.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user.Sanitize(), nil
}

func (s *UserService) GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

func (s *UserService) GetProfile(ctx context.Context, username string) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

// UpdateProfile applies the provided fields. Everything is validated before
// any image is stored; replaced images are deleted only after the new values
// are saved.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, upd model.ProfileUpdate) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var patch model.UserPatch

	if err := s.applyPassword(user, upd, &patch); err != nil {
		return nil, err
	}

	if upd.FullName != nil {
		fullName := strings.TrimSpace(*upd.FullName)
		if fullName == "" {
			return nil, model.ErrFullNameRequired
		}
		patch.FullName = &fullName
	}

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return nil, model.ErrUsernameRequired
		}
		if username != user.Username {
			exists, err := s.repo.ExistsByUsername(ctx, username)
			if err != nil {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
			if exists {
				return nil, model.ErrUsernameExists
			}
		}
		patch.Username = &username
	}

	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !emailPattern.MatchString(email) {
			return nil, model.ErrInvalidEmail
		}
		if email != user.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if exists {
				return nil, model.ErrEmailExists
			}
		}
		patch.Email = &email
	}

	if upd.Bio != nil {
		if utf8.RuneCountInString(*upd.Bio) > model.MaxBioLength {
			return nil, model.ErrBioTooLong
		}
		patch.Bio = upd.Bio
	}
	if upd.Link != nil {
		link := strings.TrimSpace(*upd.Link)
		patch.Link = &link
	}

	if (upd.ProfileImg != nil && *upd.ProfileImg != "") || (upd.CoverImg != nil && *upd.CoverImg != "") {
		if s.media == nil {
			return nil, model.ErrMediaNotAvailable
		}
	}

	var stored, replaced []string
	if upd.ProfileImg != nil {
		url, key, err := s.storeImage(ctx, *upd.ProfileImg, model.ProfileImageSpec)
		if err != nil {
			s.deleteObjects(ctx, stored)
			return nil, err
		}
		patch.ProfileImg, patch.ProfileImgKey = &url, &key
		stored = appendKey(stored, key)
		replaced = appendKey(replaced, user.ProfileImgKey)
	}
	if upd.CoverImg != nil {
		url, key, err := s.storeImage(ctx, *upd.CoverImg, model.CoverImageSpec)
		if err != nil {
			s.deleteObjects(ctx, stored)
			return nil, err
		}
		patch.CoverImg, patch.CoverImgKey = &url, &key
		stored = appendKey(stored, key)
		replaced = appendKey(replaced, user.CoverImgKey)
	}

	if patch.IsEmpty() {
		return user.Sanitize(), nil
	}

	updated, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		s.deleteObjects(ctx, stored)
		return nil, err
	}
	s.deleteObjects(ctx, replaced)

	return updated.Sanitize(), nil
}

// applyPassword validates a password change. Both passwords must be given
// together; empty strings count as absent.
func (s *UserService) applyPassword(user *model.User, upd model.ProfileUpdate, patch *model.UserPatch) error {
	current := deref(upd.CurrentPassword)
	next := deref(upd.NewPassword)
	if current == "" && next == "" {
		return nil
	}
	if current == "" || next == "" {
		return model.ErrPasswordChangeIncomplete
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return model.ErrCurrentPasswordIncorrect
	}
	if utf8.RuneCountInString(next) < model.MinPasswordLength {
		return model.ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	h := string(hashed)
	patch.Password = &h
	return nil
}

// storeImage uploads a data URL. An empty value clears the image.
func (s *UserService) storeImage(ctx context.Context, dataURL string, spec model.ImageSpec) (url, key string, err error) {
	if dataURL == "" {
		return "", "", nil
	}
	res, err := s.media.UploadImage(ctx, dataURL, spec)
	if err != nil {
		return "", "", err
	}
	return res.URL, res.Key, nil
}

func (s *UserService) deleteObjects(ctx context.Context, keys []string) {
	if s.media == nil {
		return
	}
	for _, key := range keys {
		if err := s.media.DeleteObject(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete stored image")
		}
	}
}

func appendKey(keys []string, key string) []string {
	if key == "" {
		return keys
	}
	return append(keys, key)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
