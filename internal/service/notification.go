package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/model"
	"xclone/internal/queue"
	"xclone/internal/repository"
)

const (
	NotificationDefaultLimit = 50
	NotificationMaxLimit     = 100
)

// Notifier records an in-app notification. Implemented by NotificationService.
type Notifier interface {
	Notify(ctx context.Context, notifType string, from, to primitive.ObjectID, postID *primitive.ObjectID) error
}

// NotificationService stores in-app notifications and, when FCM is
// configured, pushes them to the recipient's devices from a worker.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	tokenRepo repository.DeviceTokenRepository
	userRepo  repository.UserRepository
	publisher queue.Publisher
	push      PushSender // nil when push is not configured
	log       zerolog.Logger
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	tokenRepo repository.DeviceTokenRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		publisher: publisher,
		log:       log.With().Str("component", "NotificationService").Logger(),
	}
}

// SetPushSender enables push delivery.
func (s *NotificationService) SetPushSender(p PushSender) {
	s.push = p
}

// PushEnabled reports whether a push sender is configured.
func (s *NotificationService) PushEnabled() bool {
	return s.push != nil
}

// Notify records a notification from -> to. Self-notifications are skipped.
// Push delivery is enqueued and never fails the call.
func (s *NotificationService) Notify(ctx context.Context, notifType string, from, to primitive.ObjectID, postID *primitive.ObjectID) error {
	if from == to {
		return nil
	}

	n := &model.Notification{
		Type:   notifType,
		From:   from,
		To:     to,
		PostID: postID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("create %s notification: %w", notifType, err)
	}

	if s.push != nil && s.publisher != nil {
		event := queue.NewNotificationCreatedEvent(n.ID.Hex(), to.Hex())
		if _, err := s.publisher.Publish(ctx, queue.StreamJobs, event); err != nil {
			s.log.Warn().Err(err).Str("notification", n.ID.Hex()).Msg("Failed to enqueue push")
		}
	}
	return nil
}

// List returns the newest notifications for userID with sender summaries and the unread count.
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, limit int) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = NotificationDefaultLimit
	}
	if limit > NotificationMaxLimit {
		limit = NotificationMaxLimit
	}

	notifications, err := s.notifRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]primitive.ObjectID, 0, len(notifications))
	for _, n := range notifications {
		senderIDs = append(senderIDs, n.From)
	}
	senders, err := s.userRepo.GetSummaries(ctx, uniqueIDs(senderIDs))
	if err != nil {
		return nil, fmt.Errorf("load notification senders: %w", err)
	}
	for i := range notifications {
		if sender, ok := senders[notifications[i].From]; ok {
			notifications[i].FromUser = &sender
		}
	}

	unread, err := s.notifRepo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notifRepo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) error {
	return s.notifRepo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notifRepo.DeleteAllForUser(ctx, userID)
}

// Delete removes one notification owned by userID.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	return s.notifRepo.Delete(ctx, notificationID, userID)
}

// RegisterDevice stores a push token for userID. A token already registered
// to someone else moves to userID.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID primitive.ObjectID, req model.RegisterTokenRequest) error {
	if req.Token == "" {
		return model.ErrDeviceTokenRequired
	}
	if !model.IsValidPlatform(req.Platform) {
		return model.ErrInvalidPlatform
	}
	return s.tokenRepo.Upsert(ctx, userID.Hex(), req.Token, req.Platform)
}

func (s *NotificationService) RemoveDevice(ctx context.Context, userID primitive.ObjectID, token string) error {
	if token == "" {
		return model.ErrDeviceTokenRequired
	}
	return s.tokenRepo.Delete(ctx, userID.Hex(), token)
}

// PushNotification sends a stored notification to every device of its
// recipient. Runs on the worker.
func (s *NotificationService) PushNotification(ctx context.Context, notificationID primitive.ObjectID) error {
	if s.push == nil {
		return nil
	}

	n, err := s.notifRepo.GetByID(ctx, notificationID)
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			// Deleted before the worker got to it.
			return nil
		}
		return err
	}

	tokens, err := s.tokenRepo.GetByUserID(ctx, n.To.Hex())
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	actorName := "Someone"
	if actor, err := s.userRepo.GetByID(ctx, n.From); err == nil {
		actorName = actor.Username
	}
	title, body := buildPushMessage(actorName, n.Type)

	data := map[string]string{
		"type":            n.Type,
		"notification_id": n.ID.Hex(),
		"from_id":         n.From.Hex(),
	}
	if n.PostID != nil {
		data["post_id"] = n.PostID.Hex()
	}

	raw := make([]string, len(tokens))
	for i, t := range tokens {
		raw[i] = t.Token
	}

	stale, err := s.push.SendToTokens(ctx, raw, title, body, data)
	if len(stale) > 0 {
		if removed, derr := s.tokenRepo.DeleteTokens(ctx, stale); derr != nil {
			s.log.Warn().Err(derr).Int("stale", len(stale)).Msg("Failed to drop stale device tokens")
		} else {
			s.log.Info().Int64("removed", removed).Msg("Dropped stale device tokens")
		}
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", n.To.Hex(), err)
	}
	return nil
}

func buildPushMessage(actorUsername, notifType string) (title, body string) {
	switch notifType {
	case model.NotificationTypeFollow:
		return "New Follower", actorUsername + " started following you"
	case model.NotificationTypeLike:
		return "New Like", actorUsername + " liked your post"
	case model.NotificationTypeComment:
		return "New Comment", actorUsername + " commented on your post"
	default:
		return "xclone", "You have a new notification"
	}
}

// uniqueIDs drops duplicates, keeping first-seen order.
func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
