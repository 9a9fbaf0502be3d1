package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/cache"
	"xclone/internal/model"
	"xclone/internal/queue"
	"xclone/internal/repository"
)

// FollowService maintains the follow edge, which is stored twice: in the
// followee's followers and in the follower's following.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	feedCache  cache.FeedCache // nil disables cache invalidation
	notifier   Notifier
	publisher  queue.Publisher // nil disables queued repair
	log        zerolog.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	feedCache cache.FeedCache,
	notifier Notifier,
	publisher queue.Publisher,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		feedCache:  feedCache,
		notifier:   notifier,
		publisher:  publisher,
		log:        log.With().Str("component", "FollowService").Logger(),
	}
}

// ToggleFollow follows targetID if actorID does not follow it yet, and
// unfollows it otherwise. The followee side is written first. If the second
// write fails the edge is reconciled before the error is returned.
func (s *FollowService) ToggleFollow(ctx context.Context, actorID, targetID primitive.ObjectID) (*model.FollowResult, error) {
	if actorID == targetID {
		return nil, model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if actor.IsFollowing(targetID) {
		if err := s.followRepo.RemoveFollower(ctx, targetID, actorID); err != nil {
			return nil, fmt.Errorf("unfollow: %w", err)
		}
		if err := s.followRepo.RemoveFollowing(ctx, actorID, targetID); err != nil {
			return nil, s.partialWrite(ctx, actorID, targetID, "unfollow", err)
		}
		s.invalidateFeed(ctx, actorID)

		s.log.Info().Str("actor", actorID.Hex()).Str("target", targetID.Hex()).Msg("Unfollowed")
		return &model.FollowResult{Following: false, Message: "User unfollowed successfully"}, nil
	}

	if err := s.followRepo.AddFollower(ctx, targetID, actorID); err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	if err := s.followRepo.AddFollowing(ctx, actorID, targetID); err != nil {
		return nil, s.partialWrite(ctx, actorID, targetID, "follow", err)
	}
	s.invalidateFeed(ctx, actorID)

	if err := s.notifier.Notify(ctx, model.NotificationTypeFollow, actorID, targetID, nil); err != nil {
		s.log.Warn().Err(err).Str("actor", actorID.Hex()).Str("target", targetID.Hex()).Msg("Failed to record follow notification")
	}

	s.log.Info().Str("actor", actorID.Hex()).Str("target", targetID.Hex()).Msg("Followed")
	return &model.FollowResult{Following: true, Message: "User followed successfully"}, nil
}

// partialWrite handles a toggle whose second write failed after the first
// succeeded. The edge is reconciled in place; if that fails too, a repair job
// is queued for the worker.
func (s *FollowService) partialWrite(ctx context.Context, followerID, followeeID primitive.ObjectID, op string, cause error) error {
	s.log.Error().Err(cause).
		Str("follower", followerID.Hex()).
		Str("followee", followeeID.Hex()).
		Str("op", op).
		Msg("Follow edge left asymmetric")

	if err := s.Reconcile(ctx, followerID, followeeID); err != nil {
		s.log.Error().Err(err).Msg("Inline edge repair failed, queueing")
		if s.publisher != nil {
			event := queue.NewEdgeRepairEvent(followerID.Hex(), followeeID.Hex())
			if _, perr := s.publisher.Publish(ctx, queue.StreamJobs, event); perr != nil {
				s.log.Error().Err(perr).Msg("Failed to queue edge repair")
			}
		}
	}
	return fmt.Errorf("%s: %w", op, cause)
}

// Reconcile makes both copies of the follower -> followee edge agree. An edge
// present on either side is restored on the other. Missing users are left
// alone.
func (s *FollowService) Reconcile(ctx context.Context, followerID, followeeID primitive.ObjectID) error {
	follower, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			s.log.Warn().Str("follower", followerID.Hex()).Msg("Reconcile skipped, follower gone")
			return nil
		}
		return err
	}
	followee, err := s.userRepo.GetByID(ctx, followeeID)
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			s.log.Warn().Str("followee", followeeID.Hex()).Msg("Reconcile skipped, followee gone")
			return nil
		}
		return err
	}

	onFollower := follower.IsFollowing(followeeID)
	onFollowee := followee.HasFollower(followerID)
	if onFollower == onFollowee {
		return nil
	}

	if onFollower {
		if err := s.followRepo.AddFollower(ctx, followeeID, followerID); err != nil {
			return fmt.Errorf("restore follower: %w", err)
		}
	} else {
		if err := s.followRepo.AddFollowing(ctx, followerID, followeeID); err != nil {
			return fmt.Errorf("restore following: %w", err)
		}
		s.invalidateFeed(ctx, followerID)
	}

	s.log.Info().Str("follower", followerID.Hex()).Str("followee", followeeID.Hex()).Msg("Follow edge repaired")
	return nil
}

// GetFollowers lists the accounts following userID, most recent first.
func (s *FollowService) GetFollowers(ctx context.Context, userID primitive.ObjectID) (*model.FollowListResponse, error) {
	ids, err := s.followRepo.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, ids)
}

// GetFollowing lists the accounts userID follows, most recent first.
func (s *FollowService) GetFollowing(ctx context.Context, userID primitive.ObjectID) (*model.FollowListResponse, error) {
	ids, err := s.followRepo.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, ids)
}

// summarize resolves ids to summaries in reverse insertion order, dropping
// ids that no longer resolve.
func (s *FollowService) summarize(ctx context.Context, ids []primitive.ObjectID) (*model.FollowListResponse, error) {
	summaries, err := s.userRepo.GetSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user summaries: %w", err)
	}

	users := make([]model.UserSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if u, ok := summaries[ids[i]]; ok {
			users = append(users, u)
		}
	}
	return &model.FollowListResponse{Users: users}, nil
}

func (s *FollowService) invalidateFeed(ctx context.Context, userID primitive.ObjectID) {
	if s.feedCache == nil {
		return
	}
	if err := s.feedCache.Invalidate(ctx, userID.Hex()); err != nil {
		s.log.Warn().Err(err).Str("user", userID.Hex()).Msg("Failed to invalidate feed cache")
	}
}
