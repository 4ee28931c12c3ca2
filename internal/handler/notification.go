package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"walletnotify/internal/httputil"
	"walletnotify/internal/logger"
	"walletnotify/internal/model"
	"walletnotify/internal/service"
	"walletnotify/internal/transport/http/middleware"
)

// decodeFieldCodes maps a JSON field with the wrong type to the code returned.
var decodeFieldCodes = map[string]string{
	"token":        model.CodeInvalidToken,
	"platform":     model.CodeInvalidPlatform,
	"walletId":     model.CodeInvalidWalletID,
	"deviceId":     model.CodeInvalidDeviceID,
	"subscription": model.CodeInvalidSubscription,
}

type NotificationHandler struct {
	registration   *service.RegistrationService
	vapidPublicKey string
}

func NewNotificationHandler(registration *service.RegistrationService, vapidPublicKey string) *NotificationHandler {
	return &NotificationHandler{
		registration:   registration,
		vapidPublicKey: vapidPublicKey,
	}
}

// RegisterToken handles POST /notifications/register-token
// Stores an FCM device token for the authenticated user.
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthNoUserID, "Authenticated user has no identifier")
		return
	}

	var req model.RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	token, err := h.registration.RegisterToken(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "register token", err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, model.RegisterTokenResponse{
		ID:       token.ID,
		UserID:   token.UserID,
		Platform: token.Platform,
		WalletID: token.WalletID,
		DeviceID: token.DeviceID,
	})
}

// RegisterSubscription handles POST /notifications/register-subscription
// Stores a browser push subscription for the authenticated user.
func (h *NotificationHandler) RegisterSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthNoUserID, "Authenticated user has no identifier")
		return
	}

	var req model.RegisterSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	sub, err := h.registration.RegisterSubscription(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "register subscription", err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, model.RegisterSubscriptionResponse{
		ID:       sub.ID,
		UserID:   sub.UserID,
		Endpoint: sub.Endpoint,
	})
}

// VAPIDPublicKey handles GET /notifications/vapid-public-key
// Browsers need the application server key before they can subscribe.
func (h *NotificationHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		httputil.WriteError(w, http.StatusInternalServerError, model.CodeMissingVAPIDKey, "VAPID public key is not configured")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, model.VAPIDKeyResponse{PublicKey: h.vapidPublicKey})
}

func (h *NotificationHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteBadRequestWithCode(w, verr.Code, verr.Message)
	case errors.Is(err, model.ErrMissingIdentity):
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthNoUserID, "Authenticated user has no identifier")
	default:
		logger.From(r.Context()).Error("Handler FAILED", "component", "notification_handler", "op", op, "error", err)
		httputil.WriteInternalError(w, "Internal server error")
	}
}

// writeDecodeError reports a type mismatch on a known field with that
// field's code, anything else as a malformed body.
func writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		root, _, _ := strings.Cut(typeErr.Field, ".")
		if code, ok := decodeFieldCodes[root]; ok {
			httputil.WriteBadRequestWithCode(w, code, service.MessageForCode(code))
			return
		}
	}
	httputil.WriteBadRequestWithCode(w, model.CodeInvalidRequestBody, "Invalid request body")
}
