package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"walletnotify/internal/model"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("record not found")

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

const deviceTokenColumns = `id, user_id, wallet_id, token, platform, device_id, created_at, updated_at`

// Upsert creates or updates a device token.
// On conflict the owner, wallet and platform follow the latest registration.
func (r *deviceTokenRepository) Upsert(ctx context.Context, t *model.DeviceToken) (*model.DeviceToken, error) {
	query := r.db.Rebind(`
		INSERT INTO device_tokens (` + deviceTokenColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			wallet_id = excluded.wallet_id,
			platform = excluded.platform,
			device_id = COALESCE(excluded.device_id, device_tokens.device_id),
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.WalletID, t.Token, t.Platform, t.DeviceID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert device token: %w", err)
	}

	return r.GetByToken(ctx, t.Token)
}

func (r *deviceTokenRepository) GetByToken(ctx context.Context, token string) (*model.DeviceToken, error) {
	query := r.db.Rebind(`SELECT ` + deviceTokenColumns + ` FROM device_tokens WHERE token = ?`)

	var t model.DeviceToken
	if err := r.db.GetContext(ctx, &t, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device token: %w", err)
	}
	return &t, nil
}

// GetByWalletIDs runs a single IN query over all requested wallets.
func (r *deviceTokenRepository) GetByWalletIDs(ctx context.Context, walletIDs []string, platforms ...model.Platform) ([]model.DeviceToken, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}

	base := `SELECT ` + deviceTokenColumns + ` FROM device_tokens WHERE wallet_id IN (?)`
	args := []interface{}{walletIDs}
	if len(platforms) > 0 {
		base += ` AND platform IN (?)`
		args = append(args, platforms)
	}
	base += ` ORDER BY created_at, id`

	query, inArgs, err := sqlx.In(base, args...)
	if err != nil {
		return nil, fmt.Errorf("build device token query: %w", err)
	}

	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, r.db.Rebind(query), inArgs...); err != nil {
		return nil, fmt.Errorf("get device tokens by wallet: %w", err)
	}
	return tokens, nil
}
