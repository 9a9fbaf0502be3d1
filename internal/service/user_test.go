package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"xclone/internal/model"
)

func strPtr(s string) *string { return &s }

func newUserFixture(t *testing.T, withMedia bool) (*UserService, *mockUserRepository, *mockMediaStore) {
	t.Helper()
	repo := &mockUserRepository{store: newMemStore()}
	var media *mockMediaStore
	var store MediaStore
	if withMedia {
		media = &mockMediaStore{}
		store = media
	}
	return NewUserService(repo, store), repo, media
}

func signupAlice(t *testing.T, svc *UserService) *model.User {
	t.Helper()
	user, err := svc.Signup(context.Background(), model.SignupRequest{
		Username: "alice",
		FullName: "Alice Liddell",
		Email:    "Alice@Example.com ",
		Password: "wonderland",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return user
}

// =============================================================================
// SIGNUP TESTS
// =============================================================================

func TestUserService_Signup_Success(t *testing.T) {
	svc, repo, _ := newUserFixture(t, false)

	user := signupAlice(t, svc)

	if user.ID.IsZero() {
		t.Error("expected id to be assigned")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased and trimmed", user.Email)
	}
	if user.Password != "" {
		t.Error("returned user must not carry the password hash")
	}
	if user.Followers == nil || user.Following == nil || user.LikedPosts == nil {
		t.Error("edge arrays must start empty, not nil")
	}

	stored := repo.store.user(user.ID)
	if stored.Password == "wonderland" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("wonderland")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestUserService_Signup_Validation(t *testing.T) {
	valid := model.SignupRequest{Username: "bob", FullName: "Bob", Email: "bob@example.com", Password: "secret1"}

	tests := []struct {
		name    string
		mutate  func(r *model.SignupRequest)
		wantErr error
	}{
		{"missing username", func(r *model.SignupRequest) { r.Username = "  " }, model.ErrUsernameRequired},
		{"missing full name", func(r *model.SignupRequest) { r.FullName = "" }, model.ErrFullNameRequired},
		{"email without at", func(r *model.SignupRequest) { r.Email = "bob.example.com" }, model.ErrInvalidEmail},
		{"email without dot", func(r *model.SignupRequest) { r.Email = "bob@example" }, model.ErrInvalidEmail},
		{"email with space", func(r *model.SignupRequest) { r.Email = "b ob@example.com" }, model.ErrInvalidEmail},
		{"short password", func(r *model.SignupRequest) { r.Password = "12345" }, model.ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newUserFixture(t, false)
			req := valid
			tt.mutate(&req)

			_, err := svc.Signup(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(repo.store.users) != 0 {
				t.Error("no user should be created")
			}
		})
	}
}

func TestUserService_Signup_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		req     model.SignupRequest
		wantErr error
	}{
		{
			name:    "username taken",
			req:     model.SignupRequest{Username: "alice", FullName: "Other", Email: "other@example.com", Password: "secret1"},
			wantErr: model.ErrUsernameExists,
		},
		{
			name:    "email taken ignoring case",
			req:     model.SignupRequest{Username: "other", FullName: "Other", Email: "ALICE@example.com", Password: "secret1"},
			wantErr: model.ErrEmailExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newUserFixture(t, false)
			signupAlice(t, svc)

			_, err := svc.Signup(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if model.KindOf(err) != model.KindConflict {
				t.Errorf("kind = %v, want conflict", model.KindOf(err))
			}
		})
	}
}

func TestUserService_Signup_DuplicateKeyFromStore(t *testing.T) {
	// A concurrent signup can pass the pre-check and lose at the unique index.
	svc, repo, _ := newUserFixture(t, false)
	repo.createFn = func(ctx context.Context, user *model.User) error {
		return model.ErrEmailExists
	}

	_, err := svc.Signup(context.Background(), model.SignupRequest{Username: "x", FullName: "X", Email: "x@example.com", Password: "secret1"})
	if !errors.Is(err, model.ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists", err)
	}
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestUserService_Login(t *testing.T) {
	svc, _, _ := newUserFixture(t, false)
	alice := signupAlice(t, svc)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"success", "alice", "wonderland", nil},
		{"wrong password", "alice", "looking-glass", model.ErrInvalidCredentials},
		{"unknown user", "nobody", "wonderland", model.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(context.Background(), model.LoginRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if user.ID != alice.ID {
				t.Errorf("logged in as %s, want %s", user.ID.Hex(), alice.ID.Hex())
			}
			if user.Password != "" {
				t.Error("password hash leaked")
			}
		})
	}
}

// =============================================================================
// PROFILE TESTS
// =============================================================================

func TestUserService_GetProfile(t *testing.T) {
	svc, _, _ := newUserFixture(t, false)
	signupAlice(t, svc)

	user, err := svc.GetProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if user.Password != "" {
		t.Error("password hash leaked")
	}

	if _, err := svc.GetProfile(context.Background(), "nobody"); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		upd     model.ProfileUpdate
		wantErr error
	}{
		{"only current password", model.ProfileUpdate{CurrentPassword: strPtr("wonderland")}, model.ErrPasswordChangeIncomplete},
		{"only new password", model.ProfileUpdate{NewPassword: strPtr("newpass1")}, model.ErrPasswordChangeIncomplete},
		{"wrong current password", model.ProfileUpdate{CurrentPassword: strPtr("nope"), NewPassword: strPtr("newpass1")}, model.ErrCurrentPasswordIncorrect},
		{"short new password", model.ProfileUpdate{CurrentPassword: strPtr("wonderland"), NewPassword: strPtr("123")}, model.ErrPasswordTooShort},
		{"blank full name", model.ProfileUpdate{FullName: strPtr(" ")}, model.ErrFullNameRequired},
		{"blank username", model.ProfileUpdate{Username: strPtr("")}, model.ErrUsernameRequired},
		{"username taken", model.ProfileUpdate{Username: strPtr("bob")}, model.ErrUsernameExists},
		{"invalid email", model.ProfileUpdate{Email: strPtr("nope")}, model.ErrInvalidEmail},
		{"email taken", model.ProfileUpdate{Email: strPtr("bob@example.com")}, model.ErrEmailExists},
		{"bio too long", model.ProfileUpdate{Bio: strPtr(strings.Repeat("b", model.MaxBioLength+1))}, model.ErrBioTooLong},
		{"image without media store", model.ProfileUpdate{ProfileImg: strPtr("data:image/png;base64,AAAA")}, model.ErrMediaNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newUserFixture(t, false)
			alice := signupAlice(t, svc)
			repo.store.addUser("bob")

			_, err := svc.UpdateProfile(context.Background(), alice.ID, tt.upd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(repo.updateCalls) != 0 {
				t.Error("nothing should be written on a validation failure")
			}
		})
	}
}

func TestUserService_UpdateProfile_Fields(t *testing.T) {
	svc, repo, _ := newUserFixture(t, false)
	alice := signupAlice(t, svc)

	updated, err := svc.UpdateProfile(context.Background(), alice.ID, model.ProfileUpdate{
		FullName:        strPtr("Alice L."),
		Bio:             strPtr(""),
		Link:            strPtr(" https://alice.example "),
		Username:        strPtr("alice"), // unchanged, not a conflict with herself
		CurrentPassword: strPtr("wonderland"),
		NewPassword:     strPtr("rabbit-hole"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FullName != "Alice L." || updated.Link != "https://alice.example" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Password != "" {
		t.Error("password hash leaked")
	}

	patch := repo.updateCalls[0]
	if patch.Bio == nil || *patch.Bio != "" {
		t.Error("empty bio should be sent as an explicit clear")
	}
	if patch.Email != nil {
		t.Error("email was not provided and must not be patched")
	}

	if _, err := svc.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "rabbit-hole"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestUserService_UpdateProfile_NothingProvided(t *testing.T) {
	svc, repo, _ := newUserFixture(t, false)
	alice := signupAlice(t, svc)

	if _, err := svc.UpdateProfile(context.Background(), alice.ID, model.ProfileUpdate{}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if len(repo.updateCalls) != 0 {
		t.Error("empty update should not write")
	}
}

func TestUserService_UpdateProfile_Images(t *testing.T) {
	ctx := context.Background()

	t.Run("replace deletes old after save", func(t *testing.T) {
		svc, repo, media := newUserFixture(t, true)
		alice := signupAlice(t, svc)
		repo.store.users[alice.ID].ProfileImgKey = "profile/old.jpg"

		updated, err := svc.UpdateProfile(ctx, alice.ID, model.ProfileUpdate{
			ProfileImg: strPtr("data:image/png;base64,AAAA"),
			CoverImg:   strPtr("data:image/png;base64,BBBB"),
		})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if len(media.uploads) != 2 || media.uploads[0] != model.ProfileImageSpec || media.uploads[1] != model.CoverImageSpec {
			t.Errorf("uploads = %+v", media.uploads)
		}
		if updated.ProfileImg == "" || updated.CoverImg == "" {
			t.Errorf("image urls not stored: %+v", updated)
		}
		if len(media.deleted) != 1 || media.deleted[0] != "profile/old.jpg" {
			t.Errorf("deleted = %v, want old profile image only", media.deleted)
		}
	})

	t.Run("empty string clears", func(t *testing.T) {
		svc, repo, media := newUserFixture(t, true)
		alice := signupAlice(t, svc)
		repo.store.users[alice.ID].CoverImg = "https://cdn.example.com/cover/old.jpg"
		repo.store.users[alice.ID].CoverImgKey = "cover/old.jpg"

		updated, err := svc.UpdateProfile(ctx, alice.ID, model.ProfileUpdate{CoverImg: strPtr("")})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if updated.CoverImg != "" || updated.CoverImgKey != "" {
			t.Errorf("cover not cleared: %+v", updated)
		}
		if len(media.uploads) != 0 {
			t.Error("clearing must not upload")
		}
		if len(media.deleted) != 1 || media.deleted[0] != "cover/old.jpg" {
			t.Errorf("deleted = %v", media.deleted)
		}
	})

	t.Run("failed save removes new uploads", func(t *testing.T) {
		svc, repo, media := newUserFixture(t, true)
		alice := signupAlice(t, svc)
		repo.store.users[alice.ID].ProfileImgKey = "profile/old.jpg"
		repo.updateFn = func(ctx context.Context, id primitive.ObjectID, patch model.UserPatch) (*model.User, error) {
			return nil, errStoreDown
		}

		_, err := svc.UpdateProfile(ctx, alice.ID, model.ProfileUpdate{ProfileImg: strPtr("data:image/png;base64,AAAA")})
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("error = %v, want store failure", err)
		}
		if len(media.deleted) != 1 || media.deleted[0] == "profile/old.jpg" {
			t.Errorf("deleted = %v, want only the new upload", media.deleted)
		}
	})

	t.Run("upload failure writes nothing", func(t *testing.T) {
		svc, repo, media := newUserFixture(t, true)
		alice := signupAlice(t, svc)
		media.uploadErr = model.ErrInvalidImageType

		_, err := svc.UpdateProfile(ctx, alice.ID, model.ProfileUpdate{ProfileImg: strPtr("data:text/plain;base64,AAAA")})
		if !errors.Is(err, model.ErrInvalidImageType) {
			t.Errorf("error = %v, want ErrInvalidImageType", err)
		}
		if len(repo.updateCalls) != 0 {
			t.Error("no write expected")
		}
	})
}
