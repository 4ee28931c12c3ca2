package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"walletnotify/internal/model"
)

// Sink persists a copy of every accepted webhook for later inspection.
// Save errors are reported but must never stop event processing.
type Sink interface {
	Save(ctx context.Context, event *model.WebhookEvent) error
}

// Nop discards events. Used when auditing is disabled.
type Nop struct{}

func (Nop) Save(context.Context, *model.WebhookEvent) error { return nil }

// FileName builds "<timestamp>-<eventType>-<resourceId>.json" with the
// timestamp in UTC ISO form and ':' and '.' replaced by '-'.
func FileName(event *model.WebhookEvent, now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)

	resourceID := event.ResourceID
	if resourceID == "" {
		resourceID = "NO_ID"
	}

	name := fmt.Sprintf("%s-%s-%s.json", ts, event.EventType, resourceID)
	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}

// encode prefers the body exactly as delivered and falls back to the
// decoded envelope when no raw copy was kept.
func encode(event *model.WebhookEvent) ([]byte, error) {
	if len(event.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, event.Raw, "", "  "); err != nil {
			return nil, fmt.Errorf("indent webhook: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode webhook: %w", err)
	}
	return data, nil
}
