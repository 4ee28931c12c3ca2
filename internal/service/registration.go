package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"walletnotify/internal/logger"
	"walletnotify/internal/metrics"
	"walletnotify/internal/model"
	"walletnotify/internal/repository"
)

// fieldCodes maps a failing request field to the code returned to the client.
// Nested subscription fields all collapse into INVALID_SUBSCRIPTION.
var fieldCodes = map[string]string{
	"Token":        model.CodeInvalidToken,
	"Platform":     model.CodeInvalidPlatform,
	"WalletID":     model.CodeInvalidWalletID,
	"Subscription": model.CodeInvalidSubscription,
	"Endpoint":     model.CodeInvalidSubscription,
	"Auth":         model.CodeInvalidSubscription,
	"P256dh":       model.CodeInvalidSubscription,
}

var fieldMessages = map[string]string{
	model.CodeInvalidToken:        "Token is required and must be a string",
	model.CodeInvalidPlatform:     "Platform must be one of: android, ios, web-fcm, web-push",
	model.CodeInvalidWalletID:     "walletId is required and must be a string",
	model.CodeInvalidDeviceID:     "deviceId must be a string",
	model.CodeInvalidSubscription: "Invalid subscription object",
}

// RegistrationService stores push destinations for authenticated users.
type RegistrationService struct {
	tokens   repository.DeviceTokenRepository
	subs     repository.WebPushSubscriptionRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewRegistrationService(tokens repository.DeviceTokenRepository, subs repository.WebPushSubscriptionRepository) *RegistrationService {
	return &RegistrationService{
		tokens:   tokens,
		subs:     subs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// RegisterToken validates the request and upserts the token under userID.
// Registering a token already owned by someone else transfers it.
func (s *RegistrationService) RegisterToken(ctx context.Context, userID string, req model.RegisterTokenRequest) (*model.DeviceToken, error) {
	if userID == "" {
		return nil, model.ErrMissingIdentity
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	// An empty device id means "not provided" and keeps the stored one.
	deviceID := req.DeviceID
	if deviceID != nil && *deviceID == "" {
		deviceID = nil
	}

	now := s.now().UTC()
	stored, err := s.tokens.Upsert(ctx, &model.DeviceToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		WalletID:  req.WalletID,
		Token:     req.Token,
		Platform:  model.Platform(req.Platform),
		DeviceID:  deviceID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	metrics.Registrations.WithLabelValues("device_token").Inc()
	logger.From(ctx).Info("Device token registered",
		"component", "registration",
		"user_id", userID,
		"wallet_id", stored.WalletID,
		"platform", stored.Platform,
		"token_id", stored.ID)
	return stored, nil
}

// RegisterSubscription validates and upserts a browser subscription by endpoint.
func (s *RegistrationService) RegisterSubscription(ctx context.Context, userID string, req model.RegisterSubscriptionRequest) (*model.WebPushSubscription, error) {
	if userID == "" {
		return nil, model.ErrMissingIdentity
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stored, err := s.subs.Upsert(ctx, &model.WebPushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		WalletID:  req.WalletID,
		Endpoint:  req.Subscription.Endpoint,
		Auth:      req.Subscription.Keys.Auth,
		P256dh:    req.Subscription.Keys.P256dh,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	metrics.Registrations.WithLabelValues("web_push_subscription").Inc()
	logger.From(ctx).Info("Web push subscription registered",
		"component", "registration",
		"user_id", userID,
		"wallet_id", stored.WalletID,
		"subscription_id", stored.ID)
	return stored, nil
}

// check runs struct validation and turns the first failure into a ValidationError.
func (s *RegistrationService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError(model.CodeInvalidRequestBody, "Invalid request body")
	}

	code, ok := fieldCodes[verrs[0].StructField()]
	if !ok {
		code = model.CodeInvalidRequestBody
	}
	return model.NewValidationError(code, MessageForCode(code))
}

// MessageForCode returns the client-facing message for a validation code.
func MessageForCode(code string) string {
	if msg, ok := fieldMessages[code]; ok {
		return msg
	}
	return "Invalid request body"
}
