package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"transcribot/internal/app/model"
)

// SQLQuotaStore provides the quota store over database/sql for both supported dialects
type SQLQuotaStore struct {
	db           *sql.DB
	driverName   string
	placeholders PlaceholderFunc
	now          func() time.Time
}

// PlaceholderFunc generates parameter placeholders for different SQL dialects
type PlaceholderFunc func(n int) string

var (
	_ QuotaDAO     = (*SQLQuotaStore)(nil)
	_ QuotaSwapper = (*SQLQuotaStore)(nil)
)

// NewSQLQuotaStore creates a new SQLQuotaStore instance
func NewSQLQuotaStore(db *sql.DB, driverName string) *SQLQuotaStore {
	var placeholders PlaceholderFunc

	switch driverName {
	case "postgres":
		placeholders = func(n int) string { return fmt.Sprintf("$%d", n) }
	default:
		placeholders = func(n int) string { return "?" }
	}

	return &SQLQuotaStore{
		db:           db,
		driverName:   driverName,
		placeholders: placeholders,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Schema returns the DDL for the user_quota table in this store's dialect.
func (c *SQLQuotaStore) Schema() string {
	if c.driverName == "postgres" {
		return `CREATE TABLE IF NOT EXISTS user_quota (
	user_id TEXT PRIMARY KEY,
	remaining_sec NUMERIC(20, 6) NOT NULL CHECK (remaining_sec >= 0),
	updated_at TIMESTAMPTZ NOT NULL
)`
	}
	// TEXT keeps the decimal exact; sqlite would coerce NUMERIC to REAL.
	return `CREATE TABLE IF NOT EXISTS user_quota (
	user_id TEXT PRIMARY KEY,
	remaining_sec TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
}

// EnsureSchema creates the user_quota table if it does not exist.
func (c *SQLQuotaStore) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, c.Schema()); err != nil {
		return fmt.Errorf("create user_quota: %w", err)
	}
	return nil
}

// Get reads the record for userID
func (c *SQLQuotaStore) Get(ctx context.Context, userID string) (model.QuotaRecord, error) {
	query := fmt.Sprintf(
		"SELECT user_id, remaining_sec, updated_at FROM user_quota WHERE user_id = %s",
		c.placeholders(1),
	)

	var record model.QuotaRecord
	err := c.db.QueryRowContext(ctx, query, userID).Scan(&record.UserID, &record.RemainingSeconds, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuotaRecord{}, ErrQuotaNotFound
	}
	if err != nil {
		return model.QuotaRecord{}, fmt.Errorf("query failed: %w", err)
	}

	return record, nil
}

// Insert creates the record unless one already exists
func (c *SQLQuotaStore) Insert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	query := fmt.Sprintf(
		`INSERT INTO user_quota (user_id, remaining_sec, updated_at)
		 VALUES (%s, %s, %s)
		 ON CONFLICT (user_id) DO NOTHING`,
		c.placeholders(1), c.placeholders(2), c.placeholders(3),
	)

	if _, err := c.db.ExecContext(ctx, query, userID, remaining.String(), c.now()); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// Upsert overwrites the stored value, creating the record if needed
func (c *SQLQuotaStore) Upsert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	query := fmt.Sprintf(
		`INSERT INTO user_quota (user_id, remaining_sec, updated_at)
		 VALUES (%s, %s, %s)
		 ON CONFLICT (user_id) DO UPDATE SET remaining_sec = excluded.remaining_sec, updated_at = excluded.updated_at`,
		c.placeholders(1), c.placeholders(2), c.placeholders(3),
	)

	if _, err := c.db.ExecContext(ctx, query, userID, remaining.String(), c.now()); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// CompareAndSwap updates the record only while it still holds old
func (c *SQLQuotaStore) CompareAndSwap(ctx context.Context, userID string, old, next decimal.Decimal) (bool, error) {
	query := fmt.Sprintf(
		"UPDATE user_quota SET remaining_sec = %s, updated_at = %s WHERE user_id = %s AND remaining_sec = %s",
		c.placeholders(1), c.placeholders(2), c.placeholders(3), c.placeholders(4),
	)

	result, err := c.db.ExecContext(ctx, query, next.String(), c.now(), userID, old.String())
	if err != nil {
		return false, fmt.Errorf("compare-and-swap failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// Close closes the database connection
func (c *SQLQuotaStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// DB returns the underlying database connection
func (c *SQLQuotaStore) DB() *sql.DB {
	return c.db
}
