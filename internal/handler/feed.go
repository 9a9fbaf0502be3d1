package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// FeedReader serves feed pages. Implemented by FeedService.
type FeedReader interface {
	GetFeed(ctx context.Context, view model.FeedView, auth model.AuthContext, params model.FeedParams) (*model.FeedResponse, error)
}

type FeedHandler struct {
	feeds FeedReader
}

func NewFeedHandler(feeds FeedReader) *FeedHandler {
	return &FeedHandler{
		feeds: feeds,
	}
}

// All handles GET /api/posts/all
//
// Query params (all feed endpoints):
//   - cursor: optional, next_cursor from the previous page
//   - limit: optional, posts per page (default 10, max 50)
func (h *FeedHandler) All(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, model.GlobalView())
}

// Following handles GET /api/posts/following
func (h *FeedHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, model.FollowingView())
}

// ByUser handles GET /api/posts/user/{username}
func (h *FeedHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, model.ByUserView(chi.URLParam(r, "username")))
}

// LikedBy handles GET /api/posts/likes/{id}
func (h *FeedHandler) LikedBy(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.serve(w, r, model.LikedByView(userID))
}

func (h *FeedHandler) serve(w http.ResponseWriter, r *http.Request, view model.FeedView) {
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var params model.FeedParams
	if c := r.URL.Query().Get("cursor"); c != "" {
		params.Cursor = &c
	}
	if params.Limit, ok = queryLimit(w, r); !ok {
		return
	}

	feed, err := h.feeds.GetFeed(r.Context(), view, auth, params)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}
