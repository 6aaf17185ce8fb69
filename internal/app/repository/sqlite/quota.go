package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"transcribot/internal/app/repository"
)

// NewQuotaStore opens (or creates) the sqlite database at dbFilePath and
// makes sure the user_quota table exists.
func NewQuotaStore(ctx context.Context, dbFilePath string) (*repository.SQLQuotaStore, error) {
	inMemory := dbFilePath == ":memory:" || strings.Contains(dbFilePath, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbFilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(dbFilePath, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is its own database; writers serialize anyway.
	db.SetMaxOpenConns(1)

	store := repository.NewSQLQuotaStore(db, "sqlite3")
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string, inMemory bool) string {
	if inMemory || strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&mode=rwc", path)
}
