package webhook

import (
	"strings"

	"walletnotify/internal/model"
)

// Classify maps an event type to its category by prefix.
func Classify(eventType string) model.EventCategory {
	switch {
	case strings.HasPrefix(eventType, model.EventPrefixTransaction):
		return model.CategoryTransaction
	case strings.HasPrefix(eventType, model.EventPrefixEmbeddedWallet):
		return model.CategoryWallet
	default:
		return model.CategoryUnrecognized
	}
}

// StatusPolicy decides whether a transaction in the given status is worth a push.
type StatusPolicy func(status string) bool

// AllowAllStatuses notifies on every status.
func AllowAllStatuses(string) bool { return true }

// NewStatusPolicy returns a case-insensitive allow-list policy.
// An empty list allows everything.
func NewStatusPolicy(statuses []string) StatusPolicy {
	if len(statuses) == 0 {
		return AllowAllStatuses
	}

	allowed := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return func(status string) bool {
		_, ok := allowed[strings.ToUpper(status)]
		return ok
	}
}
