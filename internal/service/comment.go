package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/model"
	"xclone/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	log         zerolog.Logger
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		log:         log.With().Str("component", "CommentService").Logger(),
	}
}

// AddComment appends a comment and returns the post with authors attached.
func (s *CommentService) AddComment(ctx context.Context, postID, userID primitive.ObjectID, text string) (*model.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.ErrContentRequired
	}
	if utf8.RuneCountInString(text) > model.MaxCommentLength {
		return nil, model.ErrContentTooLong
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{Text: text, UserID: userID}
	if err := s.commentRepo.Append(ctx, postID, comment); err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, model.NotificationTypeComment, userID, post.UserID, &postID); err != nil {
		s.log.Warn().Err(err).Str("post", postID.Hex()).Msg("Failed to record comment notification")
	}

	updated, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	posts := []model.Post{*updated}
	if err := attachAuthors(ctx, s.userRepo, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}
