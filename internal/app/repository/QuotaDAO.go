package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"transcribot/internal/app/model"
)

// ErrQuotaNotFound is returned by Get when the user has no quota record yet.
var ErrQuotaNotFound = errors.New("quota record not found")

// QuotaDAO is the key-value record store holding each user's remaining seconds.
type QuotaDAO interface {
	Close() error

	Get(ctx context.Context, userID string) (model.QuotaRecord, error)

	// Insert creates the record for a first-seen user. It leaves an existing record untouched.
	Insert(ctx context.Context, userID string, remaining decimal.Decimal) error

	Upsert(ctx context.Context, userID string, remaining decimal.Decimal) error
}

// QuotaSwapper is implemented by stores that can write conditionally.
type QuotaSwapper interface {
	// CompareAndSwap stores next only if the stored value still equals old.
	// It reports false, with a nil error, when the value has changed.
	CompareAndSwap(ctx context.Context, userID string, old, next decimal.Decimal) (bool, error)
}
