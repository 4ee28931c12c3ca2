package repository

import (
	"context"

	"walletnotify/internal/model"
)

// DeviceTokenRepository stores FCM device tokens keyed by the token string.
type DeviceTokenRepository interface {
	// Upsert inserts the token or moves an existing one to the new owner.
	// DeviceID is only overwritten when the new record carries one.
	// Returns the stored row.
	Upsert(ctx context.Context, token *model.DeviceToken) (*model.DeviceToken, error)

	GetByToken(ctx context.Context, token string) (*model.DeviceToken, error)

	// GetByWalletIDs returns every token registered to any of the wallets,
	// optionally restricted to the given platforms.
	GetByWalletIDs(ctx context.Context, walletIDs []string, platforms ...model.Platform) ([]model.DeviceToken, error)
}

// WebPushSubscriptionRepository stores browser push subscriptions keyed by endpoint.
type WebPushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *model.WebPushSubscription) (*model.WebPushSubscription, error)

	GetByEndpoint(ctx context.Context, endpoint string) (*model.WebPushSubscription, error)

	GetByWalletIDs(ctx context.Context, walletIDs []string) ([]model.WebPushSubscription, error)
}
