package handler

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// Commenter appends comments to posts. Implemented by CommentService.
type Commenter interface {
	AddComment(ctx context.Context, postID, userID primitive.ObjectID, text string) (*model.Post, error)
}

type CommentHandler struct {
	comments Commenter
}

func NewCommentHandler(comments Commenter) *CommentHandler {
	return &CommentHandler{
		comments: comments,
	}
}

// Create handles POST /api/posts/comment/{id}
// Returns the post with the new comment attached.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.CreateCommentRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	post, err := h.comments.AddComment(r.Context(), postID, userID, req.Text)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}
