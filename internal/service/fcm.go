package service

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// fcmMaxTokens is the multicast limit of a single FCM request.
const fcmMaxTokens = 500

// PushSender delivers a push message to device tokens and reports the
// tokens FCM no longer recognizes.
type PushSender interface {
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) (stale []string, err error)
}

// FCMClient wraps the Firebase Cloud Messaging client.
type FCMClient struct {
	client *messaging.Client
	log    zerolog.Logger
}

// NewFCMClient builds a client from service-account fields. privateKey may
// carry literal "\n" sequences as found in .env files.
func NewFCMClient(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMClient, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	logger := log.With().Str("component", "FCM").Logger()
	logger.Info().Str("project", projectID).Msg("FCM initialized")
	return &FCMClient{client: client, log: logger}, nil
}

// SendToTokens sends in batches of fcmMaxTokens. Per-token failures are not
// errors; unregistered tokens are returned so the caller can drop them.
func (c *FCMClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var stale []string

	for start := 0; start < len(tokens); start += fcmMaxTokens {
		batch := tokens[start:min(start+fcmMaxTokens, len(tokens))]

		message := &messaging.MulticastMessage{
			Tokens: batch,
			Data:   data,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Android: &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		}

		response, err := c.client.SendEachForMulticast(ctx, message)
		if err != nil {
			return stale, fmt.Errorf("send multicast: %w", err)
		}

		for i, resp := range response.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
				stale = append(stale, batch[i])
				continue
			}
			c.log.Warn().Err(resp.Error).Int("index", start+i).Msg("Token delivery failed")
		}

		c.log.Debug().Int("tokens", len(batch)).Int("success", response.SuccessCount).
			Int("failure", response.FailureCount).Msg("Multicast sent")
	}

	return stale, nil
}
