package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/repository"
)

const (
	// DefaultAllotmentSeconds is granted to a user the first time they are seen.
	DefaultAllotmentSeconds = 300
	defaultMaxAttempts      = 5
)

var (
	// MinimumSeconds is the balance below which nothing can be transcribed.
	MinimumSeconds = decimal.NewFromInt(1)

	errContention = errors.New("quota record kept changing during update")
)

// Reservation is the pair of balances seen by one eager decrement.
type Reservation struct {
	UserID    string
	Requested decimal.Decimal
	Old       decimal.Decimal
	New       decimal.Decimal
}

// Exceeded reports whether the request was larger than the balance it was charged against.
func (r Reservation) Exceeded() bool {
	return r.Old.Sub(r.Requested).IsNegative()
}

// Ledger reserves, restores and credits transcription time on top of a QuotaDAO.
type Ledger struct {
	store            repository.QuotaDAO
	swapper          repository.QuotaSwapper
	defaultAllotment decimal.Decimal
	maxAttempts      int
	logger           *zap.Logger
}

// NewLedger creates a ledger. When store also implements repository.QuotaSwapper
// every decrement and credit is written as a compare-and-swap.
func NewLedger(store repository.QuotaDAO, defaultAllotment decimal.Decimal, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	swapper, _ := store.(repository.QuotaSwapper)
	return &Ledger{
		store:            store,
		swapper:          swapper,
		defaultAllotment: defaultAllotment,
		maxAttempts:      defaultMaxAttempts,
		logger:           logger.Named("quota"),
	}
}

// DefaultAllotment returns the balance given to first-seen users.
func (l *Ledger) DefaultAllotment() decimal.Decimal {
	return l.defaultAllotment
}

// Reserve charges requested seconds before any work starts.
//
// A balance below one second fails with KindQuotaExhausted and writes nothing.
// Otherwise the stored balance becomes max(old-requested, 0).
func (l *Ledger) Reserve(ctx context.Context, userID string, requested decimal.Decimal) (Reservation, error) {
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		old, err := l.current(ctx, userID)
		if err != nil {
			return Reservation{}, err
		}
		if old.LessThan(MinimumSeconds) {
			l.logger.Info("quota exhausted",
				zap.String("user_id", userID),
				zap.String("remaining_sec", old.String()),
				zap.String("requested_sec", requested.String()))
			return Reservation{}, apperrors.QuotaExhausted(requested)
		}

		next := decimal.Max(old.Sub(requested), decimal.Zero)
		written, err := l.write(ctx, userID, old, next)
		if err != nil {
			return Reservation{}, apperrors.QuotaStore("reserve", err)
		}
		if !written {
			l.logger.Debug("quota changed during reservation, retrying",
				zap.String("user_id", userID), zap.Int("attempt", attempt))
			continue
		}

		return Reservation{UserID: userID, Requested: requested, Old: old, New: next}, nil
	}
	return Reservation{}, apperrors.QuotaStore("reserve", errContention)
}

// Rollback overwrites the stored balance with previous unconditionally.
func (l *Ledger) Rollback(ctx context.Context, userID string, previous decimal.Decimal) error {
	if err := l.store.Upsert(ctx, userID, previous); err != nil {
		return apperrors.QuotaStore("rollback", err)
	}
	return nil
}

// Balance returns the user's remaining seconds. Unknown users report the
// default allotment and no record is created.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	record, err := l.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrQuotaNotFound) {
		return l.defaultAllotment, nil
	}
	if err != nil {
		return decimal.Zero, apperrors.QuotaStore("get", err)
	}
	return record.RemainingSeconds, nil
}

// Credit adds purchased seconds and returns the new balance. A first-seen
// user receives the default allotment plus the credit.
func (l *Ledger) Credit(ctx context.Context, userID string, seconds decimal.Decimal) (decimal.Decimal, error) {
	if !seconds.IsPositive() {
		return decimal.Zero, fmt.Errorf("credit must be positive, got %s", seconds)
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		old, err := l.current(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}
		next := old.Add(seconds)
		written, err := l.write(ctx, userID, old, next)
		if err != nil {
			return decimal.Zero, apperrors.QuotaStore("credit", err)
		}
		if written {
			l.logger.Info("quota credited",
				zap.String("user_id", userID),
				zap.String("credit_sec", seconds.String()),
				zap.String("remaining_sec", next.String()))
			return next, nil
		}
	}
	return decimal.Zero, apperrors.QuotaStore("credit", errContention)
}

// current reads the balance, creating the record with the default allotment for first-seen users.
func (l *Ledger) current(ctx context.Context, userID string) (decimal.Decimal, error) {
	record, err := l.store.Get(ctx, userID)
	if err == nil {
		return record.RemainingSeconds, nil
	}
	if !errors.Is(err, repository.ErrQuotaNotFound) {
		return decimal.Zero, apperrors.QuotaStore("get", err)
	}

	if err := l.store.Insert(ctx, userID, l.defaultAllotment); err != nil {
		return decimal.Zero, apperrors.QuotaStore("insert", err)
	}
	l.logger.Info("created quota record",
		zap.String("user_id", userID),
		zap.String("remaining_sec", l.defaultAllotment.String()))

	record, err = l.store.Get(ctx, userID)
	if err != nil {
		return decimal.Zero, apperrors.QuotaStore("get", err)
	}
	return record.RemainingSeconds, nil
}

func (l *Ledger) write(ctx context.Context, userID string, old, next decimal.Decimal) (bool, error) {
	if l.swapper != nil {
		return l.swapper.CompareAndSwap(ctx, userID, old, next)
	}
	if err := l.store.Upsert(ctx, userID, next); err != nil {
		return false, err
	}
	return true, nil
}
