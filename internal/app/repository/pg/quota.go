package pg

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"transcribot/internal/app/repository"
)

// NewQuotaStore connects to postgres and makes sure the user_quota table exists.
func NewQuotaStore(ctx context.Context, connectionString string) (*repository.SQLQuotaStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store, err := NewQuotaStoreFromDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewQuotaStoreFromDB wraps an already opened connection pool.
func NewQuotaStoreFromDB(ctx context.Context, db *sql.DB) (*repository.SQLQuotaStore, error) {
	store := repository.NewSQLQuotaStore(db, "postgres")
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
