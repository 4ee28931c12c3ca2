package queue

import (
	"encoding/json"
	"fmt"

	"walletnotify/internal/model"
)

// Stream names
const (
	StreamWebhooks = "stream:webhooks"
)

// Consumer group name for notification workers
const (
	ConsumerGroupNotify = "notification_workers"
)

// EncodeEvent converts a webhook event to a map for Redis XADD.
// Redis Streams store field-value pairs, so the event travels as JSON in "data".
func EncodeEvent(event *model.WebhookEvent) (map[string]interface{}, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	values := map[string]interface{}{
		"type": event.EventType,
		"id":   event.ID,
		"data": string(data),
	}
	if len(event.Raw) > 0 {
		values["raw"] = string(event.Raw)
	}
	return values, nil
}

// ParseWebhookEvent parses an event from Redis stream message values.
func ParseWebhookEvent(values map[string]interface{}) (model.WebhookEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return model.WebhookEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event model.WebhookEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return model.WebhookEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if raw, ok := values["raw"].(string); ok && raw != "" {
		event.Raw = json.RawMessage(raw)
	}
	return event, nil
}
