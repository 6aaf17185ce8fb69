package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"transcribot/internal/app/repository"
	"transcribot/internal/app/repository/pg"
	"transcribot/internal/app/repository/sqlite"
)

// DatabaseType represents the type of database to use in tests
type DatabaseType string

const (
	SQLiteDB   DatabaseType = "sqlite"
	PostgresDB DatabaseType = "postgres"
)

// PostgresTestURLEnv names the server used by postgres-backed tests.
// Tests needing postgres are skipped when it is unset.
const PostgresTestURLEnv = "POSTGRES_TEST_URL"

// TestDatabaseType reports which backend SetupTestQuotaStore will use.
func TestDatabaseType() DatabaseType {
	if os.Getenv(PostgresTestURLEnv) != "" {
		return PostgresDB
	}
	return SQLiteDB
}

// SetupTestQuotaStore opens a quota store for integration tests: postgres
// when POSTGRES_TEST_URL is set, a throwaway sqlite file otherwise.
func SetupTestQuotaStore(t *testing.T) *repository.SQLQuotaStore {
	t.Helper()

	if TestDatabaseType() == PostgresDB {
		return SetupTestPostgres(t)
	}
	return SetupTestSQLite(t)
}

// SetupTestSQLite creates a sqlite quota store in the test's temp dir
func SetupTestSQLite(t *testing.T) *repository.SQLQuotaStore {
	t.Helper()

	testDBPath := filepath.Join(t.TempDir(), fmt.Sprintf("quota_%d.db", time.Now().UnixNano()))
	store, err := sqlite.NewQuotaStore(context.Background(), testDBPath)
	if err != nil {
		t.Fatalf("Failed to open SQLite quota store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// SetupTestPostgres creates a fresh PostgreSQL database for one test and
// drops it on cleanup.
func SetupTestPostgres(t *testing.T) *repository.SQLQuotaStore {
	t.Helper()

	adminURL := os.Getenv(PostgresTestURLEnv)
	if adminURL == "" {
		t.Skipf("%s not set", PostgresTestURLEnv)
	}

	adminDB, err := sql.Open("postgres", adminURL)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL admin database: %v", err)
	}

	testDBName := fmt.Sprintf("transcribot_test_%d", time.Now().UnixNano())
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", testDBName)); err != nil {
		adminDB.Close()
		t.Fatalf("Failed to create test database: %v", err)
	}

	testURL, err := withDatabase(adminURL, testDBName)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to build test database URL: %v", err)
	}

	store, err := pg.NewQuotaStore(context.Background(), testURL)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to open PostgreSQL quota store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE %s", testDBName)); err != nil {
			t.Logf("Failed to drop test database %s: %v", testDBName, err)
		}
		adminDB.Close()
	})

	return store
}

// withDatabase swaps the database name in a postgres:// URL.
func withDatabase(rawURL, name string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Path = "/" + name
	return u.String(), nil
}

// SeedQuota writes balances straight into the store, bypassing the ledger
func SeedQuota(t *testing.T, store repository.QuotaDAO, balances map[string]string) {
	t.Helper()

	for userID, remaining := range balances {
		if err := store.Upsert(context.Background(), userID, decimal.RequireFromString(remaining)); err != nil {
			t.Fatalf("Failed to seed quota for %s: %v", userID, err)
		}
	}
}

// GetQuotaCount returns the number of rows in the user_quota table
func GetQuotaCount(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM user_quota").Scan(&count); err != nil {
		t.Fatalf("Failed to get quota count: %v", err)
	}

	return count
}

// WithTestQuotaStore provides a quota store to a test function
func WithTestQuotaStore(t *testing.T, testFunc func(t *testing.T, store *repository.SQLQuotaStore)) {
	t.Helper()

	testFunc(t, SetupTestQuotaStore(t))
}
