package model

import "time"

// WebPushSubscription is a browser push subscription keyed by its endpoint URL.
type WebPushSubscription struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	WalletID  string    `db:"wallet_id" json:"walletId"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	Auth      string    `db:"auth" json:"-"`
	P256dh    string    `db:"p256dh" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PushSubscriptionKeys holds the browser-generated encryption keys.
type PushSubscriptionKeys struct {
	Auth   string `json:"auth" validate:"required"`
	P256dh string `json:"p256dh" validate:"required"`
}

// PushSubscription is the JSON shape produced by PushManager.subscribe() in browsers.
type PushSubscription struct {
	Endpoint string               `json:"endpoint" validate:"required,url,max=512"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

// RegisterSubscriptionRequest is the request body for POST /notifications/register-subscription.
type RegisterSubscriptionRequest struct {
	Subscription *PushSubscription `json:"subscription" validate:"required"`
	WalletID     string            `json:"walletId" validate:"required,max=255"`
}

// RegisterSubscriptionResponse is returned after a subscription is stored.
type RegisterSubscriptionResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
}
