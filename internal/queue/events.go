package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job types carried on the jobs stream
const (
	EventNotificationCreated = "notification_created"
	EventEdgeRepair          = "edge_repair"
)

const (
	StreamJobs = "stream:jobs"

	ConsumerGroupJobs = "job_workers"

	// StreamMaxLen approximately caps the stream so acknowledged jobs do not pile up
	StreamMaxLen = 10000

	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// Event is a background job. Ids are hex ObjectIDs.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix millis when the job was enqueued
	Attempt   int    `json:"attempt,omitempty"`
	NotBefore int64  `json:"not_before,omitempty"` // unix millis; workers hold the job until then

	// notification_created
	NotificationID string `json:"notification_id,omitempty"`
	RecipientID    string `json:"recipient_id,omitempty"`

	// edge_repair
	FollowerID string `json:"follower_id,omitempty"`
	FolloweeID string `json:"followee_id,omitempty"`
}

// NewNotificationCreatedEvent asks a worker to push a stored notification to the recipient's devices.
func NewNotificationCreatedEvent(notificationID, recipientID string) Event {
	return Event{
		Type:           EventNotificationCreated,
		Timestamp:      time.Now().UnixMilli(),
		NotificationID: notificationID,
		RecipientID:    recipientID,
	}
}

// NewEdgeRepairEvent asks a worker to make the follow edge follower->followee symmetric.
func NewEdgeRepairEvent(followerID, followeeID string) Event {
	return Event{
		Type:       EventEdgeRepair,
		Timestamp:  time.Now().UnixMilli(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// Retry returns a copy of e scheduled as the next attempt, held back by
// RetryDelay of that attempt.
func (e Event) Retry() Event {
	next := e
	next.Attempt++
	now := time.Now()
	next.Timestamp = now.UnixMilli()
	next.NotBefore = now.Add(RetryDelay(next.Attempt)).UnixMilli()
	return next
}

// RetryDelay doubles from one second per attempt, capped at 30 seconds.
func RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 5 {
		return retryMaxDelay
	}
	return min(retryBaseDelay<<(attempt-1), retryMaxDelay)
}

// ToMap converts the event to XADD field-value pairs. The payload is JSON in "data".
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseEvent decodes an Event from stream message values.
func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return event, nil
}
