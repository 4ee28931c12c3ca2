package service

import (
	"encoding/json"
	"fmt"
	"net/url"

	"walletnotify/internal/model"
)

// StringifyData converts notification data into the string map FCM requires.
// Strings pass through untouched, everything else is JSON-encoded (nil becomes "null").
func StringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprint(v)
			continue
		}
		out[k] = string(encoded)
	}
	return out
}

// WebPushBody renders {"title", "body", ...data}. Data keys are flattened to the
// top level and win over title/body on collision, matching what service workers read.
func WebPushBody(p model.NotificationPayload) ([]byte, error) {
	envelope := make(map[string]any, len(p.Data)+2)
	envelope["title"] = p.Title
	envelope["body"] = p.Body
	for k, v := range p.Data {
		envelope[k] = v
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode web push body: %w", err)
	}
	return body, nil
}

// maskToken keeps enough of a token to correlate logs without leaking it.
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

// maskEndpoint reduces a push endpoint to its host.
func maskEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return maskToken(endpoint)
	}
	return u.Host
}
