package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/queue"
)

// MaxRepairAttempts bounds how many times an edge_repair job is re-enqueued.
const MaxRepairAttempts = 5

// Pusher delivers a stored notification to the recipient's devices.
type Pusher interface {
	PushNotification(ctx context.Context, notificationID primitive.ObjectID) error
}

// EdgeReconciler makes a follow edge symmetric across both user documents.
type EdgeReconciler interface {
	Reconcile(ctx context.Context, followerID, followeeID primitive.ObjectID) error
}

// Handler executes jobs from the jobs stream.
type Handler struct {
	reconciler EdgeReconciler
	pusher     Pusher          // nil when push is not configured
	publisher  queue.Publisher // re-enqueues failed repairs; nil disables retries
	log        zerolog.Logger
}

func NewHandler(reconciler EdgeReconciler, publisher queue.Publisher) *Handler {
	return &Handler{
		reconciler: reconciler,
		publisher:  publisher,
		log:        log.With().Str("component", "Worker").Logger(),
	}
}

// SetPusher enables push delivery for notification_created jobs.
func (h *Handler) SetPusher(p Pusher) {
	h.pusher = p
}

// HandleEvent routes an event by type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventNotificationCreated:
		err = h.handleNotificationCreated(ctx, event)
	case queue.EventEdgeRepair:
		err = h.handleEdgeRepair(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("HandleEvent failed")
		return err
	}

	h.log.Debug().Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("HandleEvent OK")
	return nil
}

func (h *Handler) handleNotificationCreated(ctx context.Context, event queue.Event) error {
	if h.pusher == nil {
		return nil
	}

	id, err := primitive.ObjectIDFromHex(event.NotificationID)
	if err != nil {
		return fmt.Errorf("invalid notification id %q: %w", event.NotificationID, err)
	}

	if err := h.pusher.PushNotification(ctx, id); err != nil {
		return fmt.Errorf("push notification %s: %w", event.NotificationID, err)
	}
	return nil
}

// handleEdgeRepair waits out the event's NotBefore and reconciles the edge.
// On failure it re-enqueues the job until MaxRepairAttempts is reached.
func (h *Handler) handleEdgeRepair(ctx context.Context, event queue.Event) error {
	followerID, err := primitive.ObjectIDFromHex(event.FollowerID)
	if err != nil {
		return fmt.Errorf("invalid follower id %q: %w", event.FollowerID, err)
	}
	followeeID, err := primitive.ObjectIDFromHex(event.FolloweeID)
	if err != nil {
		return fmt.Errorf("invalid followee id %q: %w", event.FolloweeID, err)
	}

	if err := waitUntil(ctx, event.NotBefore); err != nil {
		return fmt.Errorf("edge repair attempt %d not started: %w", event.Attempt, err)
	}

	rerr := h.reconciler.Reconcile(ctx, followerID, followeeID)
	if rerr == nil {
		h.log.Info().Str("follower", event.FollowerID).Str("followee", event.FolloweeID).
			Int("attempt", event.Attempt).Msg("Edge repaired")
		return nil
	}

	if h.publisher == nil || event.Attempt+1 >= MaxRepairAttempts {
		h.log.Error().Err(rerr).Str("follower", event.FollowerID).Str("followee", event.FolloweeID).
			Int("attempt", event.Attempt).Msg("Edge repair abandoned; edge remains asymmetric")
		return fmt.Errorf("reconcile edge: %w", rerr)
	}

	if _, err := h.publisher.Publish(ctx, queue.StreamJobs, event.Retry()); err != nil {
		return fmt.Errorf("re-enqueue edge repair: %w (reconcile: %v)", err, rerr)
	}
	return fmt.Errorf("reconcile edge (re-enqueued): %w", rerr)
}

// waitUntil blocks until the unix-millis deadline passes. Zero or past
// deadlines return immediately.
func waitUntil(ctx context.Context, notBefore int64) error {
	if notBefore == 0 {
		return nil
	}
	d := time.Until(time.UnixMilli(notBefore))
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
