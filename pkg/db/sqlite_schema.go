package db

import (
	"context"
	"fmt"
)

// sqliteSchema mirrors pkg/migrate/migrations for local sqlite runs and tests.
// Goose migrations remain the source of truth for Postgres.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  plan_id TEXT NOT NULL DEFAULT 'free',
  credits_used INTEGER NOT NULL DEFAULT 0 CHECK (credits_used >= 0),
  credits_limit INTEGER NOT NULL CHECK (credits_limit >= 0),
  subscription_status TEXT NOT NULL DEFAULT 'none',
  account_created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS credit_usage_logs (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  action_type TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  amount INTEGER NOT NULL CHECK (amount >= 0),
  credits_remaining INTEGER NOT NULL,
  created_at DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS credit_grant_events (
  id TEXT PRIMARY KEY,
  provider TEXT NOT NULL,
  event_id TEXT NOT NULL,
  account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  plan_id TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  UNIQUE (provider, event_id)
)`,
	`CREATE TABLE IF NOT EXISTS channels (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  export_format TEXT NOT NULL DEFAULT 'csv',
  rules TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC,
  currency TEXT NOT NULL DEFAULT 'USD',
  category TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'draft',
  seo_score INTEGER NOT NULL DEFAULT 0,
  last_step INTEGER NOT NULL DEFAULT 0,
  scroll_position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS listing_images (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  url TEXT NOT NULL,
  position INTEGER NOT NULL CHECK (position >= 0),
  is_main INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  UNIQUE (listing_id, position)
)`,
	`CREATE TABLE IF NOT EXISTS listing_channels (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE RESTRICT,
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  tags TEXT NOT NULL DEFAULT '[]',
  bullets TEXT NOT NULL DEFAULT '[]',
  materials TEXT NOT NULL DEFAULT '[]',
  custom_fields TEXT,
  validation_state TEXT,
  readiness_score INTEGER NOT NULL DEFAULT 0,
  is_ready INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  UNIQUE (listing_id, channel_id)
)`,
}

// EnsureSQLiteSchema creates the tables on sqlite connections. It is a no-op for
// every other dialect.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	if c.conn.Dialector.Name() != DriverSQLite {
		return nil
	}
	conn := c.conn.WithContext(ctx)
	for _, stmt := range sqliteSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
