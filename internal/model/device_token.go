package model

import (
	"time"
)

// Platform identifies the client runtime that produced a device token.
type Platform string

// Platform constants. The set is closed; anything else is rejected at registration.
const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWebFCM  Platform = "web-fcm"
	PlatformWebPush Platform = "web-push"
)

// UsesFCM reports whether tokens of this platform are delivered through FCM.
// web-push tokens are stored for completeness but browsers receive pushes
// through their WebPushSubscription instead.
func (p Platform) UsesFCM() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWebFCM:
		return true
	}
	return false
}

// FCMPlatforms lists the platforms routed to the token channel.
var FCMPlatforms = []Platform{PlatformAndroid, PlatformIOS, PlatformWebFCM}

// DeviceToken is a push token registered by an authenticated user for a wallet.
// The token itself is the natural key: re-registering it moves ownership.
type DeviceToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	WalletID  string    `db:"wallet_id" json:"walletId"`
	Token     string    `db:"token" json:"-"`
	Platform  Platform  `db:"platform" json:"platform"`
	DeviceID  *string   `db:"device_id" json:"deviceId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RegisterTokenRequest is the request body for POST /notifications/register-token.
// Field order matters: the first failing field decides the error code.
type RegisterTokenRequest struct {
	Token    string  `json:"token" validate:"required,max=512"`
	Platform string  `json:"platform" validate:"required,oneof=android ios web-fcm web-push"`
	WalletID string  `json:"walletId" validate:"required,max=255"`
	DeviceID *string `json:"deviceId"`
}

// RegisterTokenResponse mirrors what clients expect after registering a token.
type RegisterTokenResponse struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Platform Platform `json:"platform"`
	WalletID string   `json:"walletId"`
	DeviceID *string  `json:"deviceId"`
}
