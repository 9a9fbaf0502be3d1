package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/model"
)

func newCommentService(store *memStore, notifier *mockNotifier) *CommentService {
	return NewCommentService(
		&mockCommentRepository{store: store},
		&mockPostRepository{store: store},
		&mockUserRepository{store: store},
		notifier,
	)
}

func TestCommentService_AddComment(t *testing.T) {
	store := newMemStore()
	notifier := &mockNotifier{}
	svc := newCommentService(store, notifier)
	owner := store.addUser("owner")
	commenter := store.addUser("commenter")
	p := store.addPost(owner.ID, "post", time.Now())

	post, err := svc.AddComment(context.Background(), p.ID, commenter.ID, "  nice post  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(post.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(post.Comments))
	}
	c := post.Comments[0]
	if c.Text != "nice post" {
		t.Errorf("text = %q, want trimmed", c.Text)
	}
	if c.ID.IsZero() || c.CreatedAt.IsZero() {
		t.Error("comment id and timestamp must be assigned")
	}
	if c.Author == nil || c.Author.Username != "commenter" {
		t.Errorf("comment author = %+v", c.Author)
	}
	if post.Author == nil || post.Author.Username != "owner" {
		t.Errorf("post author = %+v", post.Author)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Type != model.NotificationTypeComment || notifier.calls[0].To != owner.ID {
		t.Errorf("notifications = %+v", notifier.calls)
	}
}

func TestCommentService_AddComment_Errors(t *testing.T) {
	store := newMemStore()
	svc := newCommentService(store, &mockNotifier{})
	owner := store.addUser("owner")
	p := store.addPost(owner.ID, "post", time.Now())

	tests := []struct {
		name    string
		postID  primitive.ObjectID
		text    string
		wantErr error
	}{
		{"blank", p.ID, "   ", model.ErrContentRequired},
		{"too long", p.ID, strings.Repeat("x", model.MaxCommentLength+1), model.ErrContentTooLong},
		{"missing post", primitive.NewObjectID(), "hi", model.ErrPostNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddComment(context.Background(), tt.postID, owner.ID, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommentService_OwnPostDoesNotNotify(t *testing.T) {
	store := newMemStore()
	notifier := &mockNotifier{}
	svc := newCommentService(store, notifier)
	owner := store.addUser("owner")
	p := store.addPost(owner.ID, "post", time.Now())

	if _, err := svc.AddComment(context.Background(), p.ID, owner.ID, "me again"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("self-comment notified: %+v", notifier.calls)
	}
}
