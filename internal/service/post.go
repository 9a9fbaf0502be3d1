package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/cache"
	"xclone/internal/model"
	"xclone/internal/repository"
)

type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	feedCache  cache.FeedCache // nil disables feed cache maintenance
	media      MediaStore      // nil rejects image posts
	notifier   Notifier
	log        zerolog.Logger
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	feedCache cache.FeedCache,
	media MediaStore,
	notifier Notifier,
) *PostService {
	return &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		feedCache:  feedCache,
		media:      media,
		notifier:   notifier,
		log:        log.With().Str("component", "PostService").Logger(),
	}
}

// Create stores a post with text, an image, or both.
func (s *PostService) Create(ctx context.Context, userID primitive.ObjectID, req model.CreatePostRequest) (*model.Post, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Img == "" {
		return nil, model.ErrPostEmpty
	}
	if utf8.RuneCountInString(text) > model.MaxPostTextLength {
		return nil, model.ErrTextTooLong
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.Post{UserID: userID, Text: text}
	if req.Img != "" {
		if s.media == nil {
			return nil, model.ErrMediaNotAvailable
		}
		uploaded, err := s.media.UploadImage(ctx, req.Img, model.PostImageSpec)
		if err != nil {
			return nil, err
		}
		post.Img = uploaded.URL
		post.ImgKey = uploaded.Key
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		if post.ImgKey != "" {
			s.deleteObject(ctx, post.ImgKey)
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.pushToFollowerFeeds(ctx, post)

	summary := author.Summary()
	post.Author = &summary

	s.log.Info().Str("post", post.ID.Hex()).Str("user", userID.Hex()).Bool("image", post.Img != "").Msg("Post created")
	return post, nil
}

// pushToFollowerFeeds adds the post to every follower feed that is currently
// cached. Uncached feeds pick it up when they are warmed.
func (s *PostService) pushToFollowerFeeds(ctx context.Context, post *model.Post) {
	if s.feedCache == nil {
		return
	}
	followers, err := s.followRepo.GetFollowerIDs(ctx, post.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("post", post.ID.Hex()).Msg("Failed to load followers for feed write-through")
		return
	}
	if len(followers) == 0 {
		return
	}
	if err := s.feedCache.AddPostIfCached(ctx, hexIDs(followers), post.ID.Hex(), post.CreatedAt.UnixMilli()); err != nil {
		s.log.Warn().Err(err).Str("post", post.ID.Hex()).Msg("Feed write-through failed")
	}
}

// GetByID returns a post with its author and comment authors attached.
func (s *PostService) GetByID(ctx context.Context, postID primitive.ObjectID) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	posts := []model.Post{*post}
	if err := attachAuthors(ctx, s.userRepo, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// Delete removes a post owned by userID together with its image and every
// reference to it in users' liked posts.
func (s *PostService) Delete(ctx context.Context, postID, userID primitive.ObjectID) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return model.ErrNotPostOwner
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}

	if post.ImgKey != "" {
		s.deleteObject(ctx, post.ImgKey)
	}
	if err := s.userRepo.RemoveLikedPostFromAll(ctx, postID); err != nil {
		s.log.Error().Err(err).Str("post", postID.Hex()).Msg("Failed to pull deleted post from liked posts")
	}
	s.invalidateFollowerFeeds(ctx, userID)

	s.log.Info().Str("post", postID.Hex()).Str("user", userID.Hex()).Msg("Post deleted")
	return nil
}

func (s *PostService) invalidateFollowerFeeds(ctx context.Context, authorID primitive.ObjectID) {
	if s.feedCache == nil {
		return
	}
	followers, err := s.followRepo.GetFollowerIDs(ctx, authorID)
	if err != nil {
		s.log.Warn().Err(err).Str("user", authorID.Hex()).Msg("Failed to load followers for feed invalidation")
		return
	}
	if len(followers) == 0 {
		return
	}
	if err := s.feedCache.Invalidate(ctx, hexIDs(followers)...); err != nil {
		s.log.Warn().Err(err).Str("user", authorID.Hex()).Msg("Feed invalidation failed")
	}
}

// ToggleLike likes postID for userID, or removes the like if present. The
// post's like set is written first; a failure on the user's liked posts is
// logged and does not fail the call.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*model.LikeResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	liked := !post.IsLikedBy(userID)
	if liked {
		if err := s.postRepo.AddLike(ctx, postID, userID); err != nil {
			return nil, err
		}
		if err := s.userRepo.AddLikedPost(ctx, userID, postID); err != nil {
			s.log.Error().Err(err).Str("post", postID.Hex()).Str("user", userID.Hex()).Msg("Like recorded on post but not on user")
		}
		if err := s.notifier.Notify(ctx, model.NotificationTypeLike, userID, post.UserID, &postID); err != nil {
			s.log.Warn().Err(err).Str("post", postID.Hex()).Msg("Failed to record like notification")
		}
	} else {
		if err := s.postRepo.RemoveLike(ctx, postID, userID); err != nil {
			return nil, err
		}
		if err := s.userRepo.RemoveLikedPost(ctx, userID, postID); err != nil {
			s.log.Error().Err(err).Str("post", postID.Hex()).Str("user", userID.Hex()).Msg("Like removed from post but not from user")
		}
	}

	updated, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &model.LikeResult{Liked: liked, Likes: updated.Likes}, nil
}

func (s *PostService) deleteObject(ctx context.Context, key string) {
	if s.media == nil {
		return
	}
	if err := s.media.DeleteObject(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete stored image")
	}
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
