package handler

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// FollowGraph toggles and lists follow edges. Implemented by FollowService.
type FollowGraph interface {
	ToggleFollow(ctx context.Context, actorID, targetID primitive.ObjectID) (*model.FollowResult, error)
	GetFollowers(ctx context.Context, userID primitive.ObjectID) (*model.FollowListResponse, error)
	GetFollowing(ctx context.Context, userID primitive.ObjectID) (*model.FollowListResponse, error)
}

type FollowHandler struct {
	graph FollowGraph
}

func NewFollowHandler(graph FollowGraph) *FollowHandler {
	return &FollowHandler{
		graph: graph,
	}
}

// Toggle handles POST /api/users/follow/{id}
// Follows the target if the caller does not follow it yet, unfollows otherwise.
func (h *FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.graph.ToggleFollow(r.Context(), actorID, targetID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Followers handles GET /api/users/{id}/followers
func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.graph.GetFollowers)
}

// Following handles GET /api/users/{id}/following
func (h *FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.graph.GetFollowing)
}

func (h *FollowHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, primitive.ObjectID) (*model.FollowListResponse, error)) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	users, err := fetch(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}
