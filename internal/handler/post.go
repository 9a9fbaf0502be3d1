package handler

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// Posts creates, reads, likes and deletes posts. Implemented by PostService.
type Posts interface {
	Create(ctx context.Context, userID primitive.ObjectID, req model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, postID primitive.ObjectID) (*model.Post, error)
	Delete(ctx context.Context, postID, userID primitive.ObjectID) error
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*model.LikeResult, error)
}

type PostHandler struct {
	posts Posts
}

func NewPostHandler(posts Posts) *PostHandler {
	return &PostHandler{
		posts: posts,
	}
}

// Create handles POST /api/posts/create
// Creates a new post for the authenticated user.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreatePostRequest
	if !decodeBody(w, r, maxImageBody, &req) {
		return
	}

	post, err := h.posts.Create(r.Context(), userID, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// GetByID handles GET /api/posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	post, err := h.posts.GetByID(r.Context(), postID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// ToggleLike handles POST /api/posts/like/{id}
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.posts.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/posts/{id}
// Only the author may delete a post.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), postID, userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Post deleted successfully")
}
