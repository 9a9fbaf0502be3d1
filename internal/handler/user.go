package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// Profiles reads and edits user profiles. Implemented by UserService.
type Profiles interface {
	GetProfile(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, upd model.ProfileUpdate) (*model.User, error)
}

// Suggester picks accounts to follow. Implemented by SuggestionService.
type Suggester interface {
	SuggestUsers(ctx context.Context, auth model.AuthContext, limit int) ([]model.User, error)
}

type UserHandler struct {
	profiles  Profiles
	suggester Suggester
}

func NewUserHandler(profiles Profiles, suggester Suggester) *UserHandler {
	return &UserHandler{
		profiles:  profiles,
		suggester: suggester,
	}
}

// GetProfile handles GET /api/users/profile/{username}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	user, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user.Sanitize())
}

// Suggested handles GET /api/users/suggested
//
// Query params:
//   - limit: optional (default 4, max 10)
func (h *UserHandler) Suggested(w http.ResponseWriter, r *http.Request) {
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	users, err := h.suggester.SuggestUsers(r.Context(), auth, limit)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}

// Update handles POST /api/users/update
// Fields left out of the body are not changed.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var upd model.ProfileUpdate
	if !decodeBody(w, r, maxUserBody, &upd) {
		return
	}

	user, err := h.profiles.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user.Sanitize())
}
