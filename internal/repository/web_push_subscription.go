package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"walletnotify/internal/model"
)

type webPushSubscriptionRepository struct {
	db *sqlx.DB
}

func NewWebPushSubscriptionRepository(db *sqlx.DB) WebPushSubscriptionRepository {
	return &webPushSubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, wallet_id, endpoint, auth, p256dh, created_at, updated_at`

// Upsert creates or updates a subscription by endpoint.
// Browsers rotate keys on resubscribe, so keys always follow the latest request.
func (r *webPushSubscriptionRepository) Upsert(ctx context.Context, s *model.WebPushSubscription) (*model.WebPushSubscription, error) {
	query := r.db.Rebind(`
		INSERT INTO web_push_subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			wallet_id = excluded.wallet_id,
			auth = excluded.auth,
			p256dh = excluded.p256dh,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.WalletID, s.Endpoint, s.Auth, s.P256dh, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert web push subscription: %w", err)
	}

	return r.GetByEndpoint(ctx, s.Endpoint)
}

func (r *webPushSubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.WebPushSubscription, error) {
	query := r.db.Rebind(`SELECT ` + subscriptionColumns + ` FROM web_push_subscriptions WHERE endpoint = ?`)

	var s model.WebPushSubscription
	if err := r.db.GetContext(ctx, &s, query, endpoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get web push subscription: %w", err)
	}
	return &s, nil
}

func (r *webPushSubscriptionRepository) GetByWalletIDs(ctx context.Context, walletIDs []string) ([]model.WebPushSubscription, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+subscriptionColumns+` FROM web_push_subscriptions WHERE wallet_id IN (?) ORDER BY created_at, id`,
		walletIDs)
	if err != nil {
		return nil, fmt.Errorf("build subscription query: %w", err)
	}

	var subs []model.WebPushSubscription
	if err := r.db.SelectContext(ctx, &subs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get web push subscriptions by wallet: %w", err)
	}
	return subs, nil
}
