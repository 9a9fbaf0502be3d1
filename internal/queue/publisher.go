package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Publisher enqueues background jobs.
type Publisher interface {
	// Publish appends event to stream and returns the id Redis assigned.
	Publish(ctx context.Context, stream string, event Event) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{
		client: client,
		log:    log.With().Str("component", "Publisher").Logger(),
	}
}

// Publish runs XADD with an auto-generated id and approximate MAXLEN trimming.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		p.log.Error().Err(err).Str("stream", stream).Str("type", event.Type).Msg("Publish failed")
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		p.log.Error().Err(err).Str("stream", stream).Str("type", event.Type).Msg("Publish failed")
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	evt := p.log.Debug().Str("stream", stream).Str("type", event.Type).Str("msg_id", messageID).
		Int("attempt", event.Attempt).Dur("duration", time.Since(startTime))
	switch event.Type {
	case EventNotificationCreated:
		evt = evt.Str("notification", event.NotificationID).Str("recipient", event.RecipientID)
	case EventEdgeRepair:
		evt = evt.Str("follower", event.FollowerID).Str("followee", event.FolloweeID)
	}
	evt.Msg("Publish OK")

	return messageID, nil
}
