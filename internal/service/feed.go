package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/cache"
	"xclone/internal/model"
	"xclone/internal/repository"
)

// tieSlack is how many extra cache entries a page reads up front so that
// entries sharing the cursor's millisecond can be skipped. Longer runs of ties
// widen the read.
const tieSlack = 8

type FeedService struct {
	feedCache cache.FeedCache // nil serves the following feed from Mongo only
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	log       zerolog.Logger
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) *FeedService {
	return &FeedService{
		feedCache: feedCache,
		postRepo:  postRepo,
		userRepo:  userRepo,
		log:       log.With().Str("component", "FeedService").Logger(),
	}
}

// GetFeed returns one page of the selected feed with authors attached.
func (s *FeedService) GetFeed(ctx context.Context, view model.FeedView, auth model.AuthContext, params model.FeedParams) (*model.FeedResponse, error) {
	limit := clampLimit(params.Limit, model.FeedDefaultLimit, model.FeedMaxLimit)

	var (
		page *model.FeedResponse
		err  error
	)
	switch view.Kind {
	case model.FeedGlobal:
		page, err = s.globalFeed(ctx, params.Cursor, limit)
	case model.FeedFollowing:
		page, err = s.followingFeed(ctx, auth.UserID, params.Cursor, limit)
	case model.FeedByUser:
		page, err = s.userFeed(ctx, view.Username, params.Cursor, limit)
	case model.FeedLikedBy:
		page, err = s.likedFeed(ctx, view.UserID, params.Cursor, limit)
	default:
		return nil, model.ErrInvalidFeedView
	}
	if err != nil {
		return nil, err
	}

	if err := attachAuthors(ctx, s.userRepo, page.Posts); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *FeedService) globalFeed(ctx context.Context, cursor *string, limit int) (*model.FeedResponse, error) {
	before, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	return s.listPage(ctx, repository.PostQuery{Before: before}, limit)
}

func (s *FeedService) userFeed(ctx context.Context, username string, cursor *string, limit int) (*model.FeedResponse, error) {
	before, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.listPage(ctx, repository.PostQuery{AuthorIDs: []primitive.ObjectID{user.ID}, Before: before}, limit)
}

// followingFeed serves from the Redis cache when it can, and from Mongo
// whenever the cache is unavailable or cannot fill the page.
func (s *FeedService) followingFeed(ctx context.Context, userID primitive.ObjectID, cursor *string, limit int) (*model.FeedResponse, error) {
	before, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	me, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(me.Following) == 0 {
		return emptyPage(), nil
	}

	if s.feedCache != nil {
		start := time.Now()
		if page, ok := s.cachedFollowingPage(ctx, me, before, limit); ok {
			s.log.Debug().Str("user", userID.Hex()).Int("posts", len(page.Posts)).Dur("took", time.Since(start)).Msg("Following feed served from cache")
			return page, nil
		}
	}

	return s.listPage(ctx, repository.PostQuery{AuthorIDs: me.Following, Before: before}, limit)
}

// cachedFollowingPage reports ok=false when the caller should fall back to Mongo.
func (s *FeedService) cachedFollowingPage(ctx context.Context, me *model.User, before *model.PostCursor, limit int) (*model.FeedResponse, bool) {
	key := me.ID.Hex()

	exists, err := s.feedCache.Exists(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("user", key).Msg("Feed cache check failed")
		return nil, false
	}
	if !exists {
		scores, err := s.postRepo.GetFeedPostScores(ctx, me.Following, cache.FeedCacheCap)
		if err != nil {
			s.log.Warn().Err(err).Str("user", key).Msg("Failed to load posts for cache warm")
			return nil, false
		}
		if len(scores) == 0 {
			return emptyPage(), true
		}
		if err := s.feedCache.WarmCache(ctx, key, scores); err != nil {
			s.log.Warn().Err(err).Str("user", key).Msg("Feed cache warm failed")
			return nil, false
		}
	}

	var maxScore *float64
	if before != nil {
		score := float64(before.CreatedAt.UnixMilli())
		maxScore = &score
	}

	var entries []model.PostCursor
	window := limit + 1 + tieSlack
	for {
		ids, scores, err := s.feedCache.GetFeed(ctx, key, maxScore, window)
		if err != nil {
			s.log.Warn().Err(err).Str("user", key).Msg("Feed cache read failed")
			return nil, false
		}
		entries = entriesAfter(ids, scores, before)

		// A full window that still cannot fill the page is all ties at the
		// cursor's millisecond; read further instead of ending the feed.
		if len(entries) > limit || len(ids) < window || window > cache.FeedCacheCap {
			break
		}
		window *= 2
	}

	if len(entries) <= limit {
		// The cache ran out for this page. A cache at the cap may have
		// trimmed older posts; below the cap it holds everything.
		size, err := s.feedCache.Size(ctx, key)
		if err != nil || size >= cache.FeedCacheCap {
			return nil, false
		}
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	postIDs := make([]primitive.ObjectID, len(entries))
	for i, e := range entries {
		postIDs[i] = e.ID
	}
	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		s.log.Warn().Err(err).Str("user", key).Msg("Failed to hydrate cached feed")
		return nil, false
	}

	page := &model.FeedResponse{Posts: posts, HasMore: hasMore}
	if hasMore {
		next := entries[len(entries)-1].String()
		page.NextCursor = &next
	}
	return page, true
}

// entriesAfter decodes cache entries, dropping those at or ahead of the cursor
// within its millisecond.
func entriesAfter(ids []string, scores []float64, before *model.PostCursor) []model.PostCursor {
	entries := make([]model.PostCursor, 0, len(ids))
	for i, hex := range ids {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			continue
		}
		entry := model.PostCursor{CreatedAt: time.UnixMilli(int64(scores[i])).UTC(), ID: id}
		if before != nil && !entry.CreatedAt.Before(before.CreatedAt) && hex >= before.ID.Hex() {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// likedFeed pages through the user's liked posts, most recent like first.
// The cursor is the hex id of the last post returned.
func (s *FeedService) likedFeed(ctx context.Context, userID primitive.ObjectID, cursor *string, limit int) (*model.FeedResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	liked := make([]primitive.ObjectID, len(user.LikedPosts))
	for i, id := range user.LikedPosts {
		liked[len(liked)-1-i] = id
	}

	start := 0
	if cursor != nil {
		after, err := model.ParseObjectID(*cursor)
		if err != nil {
			return nil, model.ErrInvalidCursor
		}
		start = -1
		for i, id := range liked {
			if id == after {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, model.ErrInvalidCursor
		}
	}

	end := min(start+limit, len(liked))
	window := liked[start:end]
	posts, err := s.postRepo.GetByIDs(ctx, window)
	if err != nil {
		return nil, err
	}

	page := &model.FeedResponse{Posts: posts, HasMore: end < len(liked)}
	if page.HasMore {
		next := window[len(window)-1].Hex()
		page.NextCursor = &next
	}
	return page, nil
}

// listPage fetches one extra post to learn whether another page exists.
func (s *FeedService) listPage(ctx context.Context, q repository.PostQuery, limit int) (*model.FeedResponse, error) {
	q.Limit = limit + 1
	posts, err := s.postRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	page := &model.FeedResponse{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		page.HasMore = true
		next := model.CursorAfter(page.Posts[limit-1]).String()
		page.NextCursor = &next
	}
	return page, nil
}

func parseCursor(cursor *string) (*model.PostCursor, error) {
	if cursor == nil || *cursor == "" {
		return nil, nil
	}
	return model.ParsePostCursor(*cursor)
}

func emptyPage() *model.FeedResponse {
	return &model.FeedResponse{Posts: []model.Post{}}
}
