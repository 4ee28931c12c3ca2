package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"

	"walletnotify/internal/httputil"
	"walletnotify/internal/logger"
	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
	"walletnotify/internal/webhook"
)

// MaxWebhookBody caps the bytes read from a webhook request.
const MaxWebhookBody = 1 << 20

const rawBodyKey contextKey = "raw_body"

// BodyVerifier checks a signature over the exact request bytes.
type BodyVerifier interface {
	Verify(body []byte, signature string) error
}

// SignatureMiddleware reads the body once, verifies its signature and stores
// the raw bytes in the context. Nothing downstream runs on failure.
func SignatureMiddleware(verifier BodyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.From(r.Context()).With("component", "signature")

			if verifier == nil {
				log.Error("Webhook rejected: no public key configured")
				metrics.WebhooksReceived.WithLabelValues("not_configured").Inc()
				httputil.WriteError(w, http.StatusInternalServerError, model.CodeWebhookNotConfigured, "Webhook verification is not configured")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httputil.WriteError(w, http.StatusRequestEntityTooLarge, model.CodeInvalidWebhook, "Webhook payload too large")
					return
				}
				httputil.WriteBadRequestWithCode(w, model.CodeInvalidWebhook, "Could not read webhook body")
				return
			}

			signature := r.Header.Get(webhook.SignatureHeader)
			if err := verifier.Verify(body, signature); err != nil {
				metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
				if errors.Is(err, webhook.ErrMissingSignature) {
					log.Warn("Webhook rejected: missing signature")
					httputil.WriteUnauthorizedWithCode(w, model.CodeMissingSignature, "Missing webhook signature")
					return
				}
				log.Warn("Webhook rejected: invalid signature", "error", err)
				httputil.WriteUnauthorizedWithCode(w, model.CodeInvalidSignature, "Invalid webhook signature")
				return
			}

			ctx := context.WithValue(r.Context(), rawBodyKey, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawBodyFromContext returns the verified request bytes.
func RawBodyFromContext(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey).([]byte)
	return body, ok
}
