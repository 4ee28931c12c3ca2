package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"walletnotify/internal/model"
)

// WebPushConfig holds the VAPID identity of this server.
type WebPushConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
	TTL        int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient webpush.HTTPClient
}

// WebPushClient sends encrypted payloads to browser push services.
type WebPushClient struct {
	cfg WebPushConfig
}

// PushServiceError is returned when the push service answers with a non-2xx status.
// 404 and 410 mean the subscription is gone.
type PushServiceError struct {
	StatusCode int
	Body       string
}

func (e *PushServiceError) Error() string {
	return fmt.Sprintf("push service returned %d: %s", e.StatusCode, e.Body)
}

// Expired reports whether the subscription no longer exists.
func (e *PushServiceError) Expired() bool {
	return e.StatusCode == 404 || e.StatusCode == 410
}

// NewWebPushClient returns model.ErrChannelUnavailable unless the subject and
// both VAPID keys are set.
func NewWebPushClient(cfg WebPushConfig) (*WebPushClient, error) {
	if cfg.Subject == "" || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, model.ErrChannelUnavailable
	}
	// The library adds the mailto: scheme itself.
	cfg.Subject = strings.TrimPrefix(cfg.Subject, "mailto:")
	return &WebPushClient{cfg: cfg}, nil
}

// PublicKey is the application server key browsers subscribe with.
func (c *WebPushClient) PublicKey() string {
	return c.cfg.PublicKey
}

func (c *WebPushClient) Send(ctx context.Context, sub model.WebPushSubscription, body []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      c.cfg.HTTPClient,
		Subscriber:      c.cfg.Subject,
		VAPIDPublicKey:  c.cfg.PublicKey,
		VAPIDPrivateKey: c.cfg.PrivateKey,
		TTL:             c.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("web push send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &PushServiceError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}
