package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver for local runs and tests

	"walletnotify/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Schema creates the destination tables. The DDL is portable between
// PostgreSQL and SQLite so the same repositories run on both.
const Schema = `
CREATE TABLE IF NOT EXISTS device_tokens (
	id         VARCHAR(36)  PRIMARY KEY,
	user_id    VARCHAR(255) NOT NULL,
	wallet_id  VARCHAR(255) NOT NULL,
	token      VARCHAR(512) NOT NULL UNIQUE,
	platform   VARCHAR(16)  NOT NULL CHECK (platform IN ('android', 'ios', 'web-fcm', 'web-push')),
	device_id  VARCHAR(255),
	created_at TIMESTAMP    NOT NULL,
	updated_at TIMESTAMP    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_device_tokens_user_id ON device_tokens (user_id);
CREATE INDEX IF NOT EXISTS idx_device_tokens_wallet_id ON device_tokens (wallet_id);

CREATE TABLE IF NOT EXISTS web_push_subscriptions (
	id         VARCHAR(36)  PRIMARY KEY,
	user_id    VARCHAR(255) NOT NULL,
	wallet_id  VARCHAR(255) NOT NULL,
	endpoint   VARCHAR(512) NOT NULL UNIQUE,
	auth       VARCHAR(255) NOT NULL,
	p256dh     VARCHAR(255) NOT NULL,
	created_at TIMESTAMP    NOT NULL,
	updated_at TIMESTAMP    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_web_push_subscriptions_user_id ON web_push_subscriptions (user_id);
CREATE INDEX IF NOT EXISTS idx_web_push_subscriptions_wallet_id ON web_push_subscriptions (wallet_id);
`

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

func Connect(cfg *config.Config) (*sqlx.DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection keeps a single file/memory database consistent
		// and avoids SQLITE_BUSY under concurrent writers.
		db.SetMaxOpenConns(1)
	}

	slog.Info("Connected to database", "driver", driver)
	return db, nil
}

// Migrate applies the schema. Safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func dataSource(cfg *config.Config) (driver, dsn string, err error) {
	switch cfg.DBDriver {
	case DriverPostgres, "":
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		return DriverPostgres, dsn, nil
	case DriverSQLite:
		path := cfg.DBPath
		if path == "" {
			path = "walletnotify.db"
		}
		return DriverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
