package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"walletnotify/internal/model"
)

// FCMCredentials lists the supported ways to supply a Firebase service account.
// The first populated source wins: inline JSON, the split env triple, then a file path.
type FCMCredentials struct {
	ServiceAccountJSON string
	ProjectID          string
	ClientEmail        string
	PrivateKey         string
	ServiceAccountPath string
}

func (c FCMCredentials) clientOption() (option.ClientOption, error) {
	switch {
	case c.ServiceAccountJSON != "":
		return option.WithCredentialsJSON([]byte(c.ServiceAccountJSON)), nil
	case c.ProjectID != "" && c.ClientEmail != "" && c.PrivateKey != "":
		// In .env files, newlines are often escaped as \n (two characters)
		privateKey := strings.ReplaceAll(c.PrivateKey, "\\n", "\n")
		credsJSON := fmt.Sprintf(`{
			"type": "service_account",
			"project_id": %q,
			"private_key": %q,
			"client_email": %q,
			"token_uri": "https://oauth2.googleapis.com/token"
		}`, c.ProjectID, privateKey, c.ClientEmail)
		return option.WithCredentialsJSON([]byte(credsJSON)), nil
	case c.ServiceAccountPath != "":
		return option.WithCredentialsFile(c.ServiceAccountPath), nil
	default:
		return nil, model.ErrChannelUnavailable
	}
}

// messenger is the part of *messaging.Client used here.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMClient sends data-only messages through Firebase Cloud Messaging.
// Apps render the notification themselves from the data fields.
type FCMClient struct {
	client messenger
}

// NewFCMClient initializes the Firebase app. Returns model.ErrChannelUnavailable
// when no credential source is configured.
func NewFCMClient(ctx context.Context, creds FCMCredentials) (*FCMClient, error) {
	opt, err := creds.clientOption()
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	slog.Info("FCM initialized", "component", "fcm")
	return &FCMClient{client: client}, nil
}

// BuildDataMessage builds the message for one token. There is no notification
// block; high priority on Android and content-available on iOS wake the app so
// it can render the push itself.
func BuildDataMessage(token string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
				},
			},
		},
	}
}

// SendData sends one data message. Unregistered tokens are reported as failures
// and left in place.
func (c *FCMClient) SendData(ctx context.Context, token string, platform model.Platform, data map[string]string) error {
	msgID, err := c.client.Send(ctx, BuildDataMessage(token, data))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm token unregistered (platform=%s): %w", platform, err)
		}
		return fmt.Errorf("fcm send (platform=%s): %w", platform, err)
	}

	slog.Debug("FCM send OK", "component", "fcm", "platform", platform, "message_id", msgID)
	return nil
}
