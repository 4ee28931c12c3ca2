package handler

import (
	"encoding/json"
	"net/http"

	"walletnotify/internal/httputil"
	"walletnotify/internal/logger"
	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
	"walletnotify/internal/transport/http/middleware"
	"walletnotify/internal/worker"
)

type WebhookHandler struct {
	submitter worker.Submitter
}

func NewWebhookHandler(submitter worker.Submitter) *WebhookHandler {
	return &WebhookHandler{submitter: submitter}
}

// Receive handles POST /webhook
// The signature middleware has already verified the raw body. The platform
// is acknowledged before any notification work starts.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With("component", "webhook_handler")

	body, ok := middleware.RawBodyFromContext(r.Context())
	if !ok {
		log.Error("Webhook body missing from context")
		httputil.WriteInternalError(w, "Internal server error")
		return
	}

	var event model.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || !event.Valid() {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		log.Warn("Webhook rejected: invalid payload", "error", err)
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidWebhook, "Invalid webhook payload")
		return
	}
	event.Raw = body

	log.Info("Webhook received",
		"event_id", event.ID,
		"event_type", event.EventType,
		"resource_id", event.ResourceID)
	metrics.WebhooksReceived.WithLabelValues("accepted").Inc()

	httputil.WriteSuccess(w, http.StatusOK, model.WebhookAccepted{EventID: event.ID})

	h.submitter.Submit(r.Context(), &event)
}
