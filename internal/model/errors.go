package model

import (
	"errors"
	"fmt"
)

// Error codes returned to API clients.
const (
	CodeInvalidRequestBody   = "INVALID_REQUEST_BODY"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInvalidPlatform      = "INVALID_PLATFORM"
	CodeInvalidWalletID      = "INVALID_WALLET_ID"
	CodeInvalidDeviceID      = "INVALID_DEVICE_ID"
	CodeInvalidSubscription  = "INVALID_SUBSCRIPTION"
	CodeInvalidWebhook       = "INVALID_WEBHOOK_PAYLOAD"
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeAuthNoUserID         = "AUTH_NO_USER_ID"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeMissingSignature     = "MISSING_SIGNATURE"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeWebhookNotConfigured = "WEBHOOK_NOT_CONFIGURED"
	CodeMissingVAPIDKey      = "MISSING_VAPID_PUBLIC_KEY"
	CodeRateLimited          = "RATE_LIMITED"
)

var (
	// ErrMissingIdentity means a protected operation was reached without an authenticated subject.
	ErrMissingIdentity = errors.New("authenticated identity missing")

	// ErrChannelUnavailable marks a delivery channel whose credentials are not configured.
	ErrChannelUnavailable = errors.New("delivery channel not configured")

	// ErrUnrecognizedEvent is reported for event types with no notification mapping.
	ErrUnrecognizedEvent = errors.New("unrecognized event type")
)

// ValidationError is a client input error carrying the code returned to the caller.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// DeliveryError wraps a failed send to one destination.
type DeliveryError struct {
	Channel Channel
	Target  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", e.Channel, e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
