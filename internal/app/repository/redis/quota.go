package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"transcribot/internal/app/model"
	"transcribot/internal/app/repository"
)

const (
	keyPrefix      = "quota:"
	fieldRemaining = "remaining_sec"
	fieldUpdatedAt = "updated_at"
)

var errValueChanged = errors.New("quota value changed")

// QuotaStore keeps each user's record in a hash at quota:<userID>.
type QuotaStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

var (
	_ repository.QuotaDAO     = (*QuotaStore)(nil)
	_ repository.QuotaSwapper = (*QuotaStore)(nil)
)

// Options selects the redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewQuotaStore connects to redis and checks the connection.
func NewQuotaStore(ctx context.Context, opts Options) (*QuotaStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewQuotaStoreFromClient(client), nil
}

// NewQuotaStoreFromClient wraps an existing client.
func NewQuotaStoreFromClient(client goredis.UniversalClient) *QuotaStore {
	return &QuotaStore{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func key(userID string) string {
	return keyPrefix + userID
}

func (s *QuotaStore) Close() error {
	return s.client.Close()
}

func (s *QuotaStore) Get(ctx context.Context, userID string) (model.QuotaRecord, error) {
	values, err := s.client.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return model.QuotaRecord{}, fmt.Errorf("hgetall: %w", err)
	}
	raw, ok := values[fieldRemaining]
	if !ok {
		return model.QuotaRecord{}, repository.ErrQuotaNotFound
	}

	remaining, err := decimal.NewFromString(raw)
	if err != nil {
		return model.QuotaRecord{}, fmt.Errorf("parse %s for %s: %w", fieldRemaining, userID, err)
	}
	record := model.QuotaRecord{UserID: userID, RemainingSeconds: remaining}
	if ts, ok := values[fieldUpdatedAt]; ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			record.UpdatedAt = parsed
		}
	}
	return record, nil
}

func (s *QuotaStore) Insert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	created, err := s.client.HSetNX(ctx, key(userID), fieldRemaining, remaining.String()).Result()
	if err != nil {
		return fmt.Errorf("hsetnx: %w", err)
	}
	if created {
		if err := s.client.HSet(ctx, key(userID), fieldUpdatedAt, s.timestamp()).Err(); err != nil {
			return fmt.Errorf("hset %s: %w", fieldUpdatedAt, err)
		}
	}
	return nil
}

func (s *QuotaStore) Upsert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	err := s.client.HSet(ctx, key(userID),
		fieldRemaining, remaining.String(),
		fieldUpdatedAt, s.timestamp(),
	).Err()
	if err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

// CompareAndSwap uses WATCH/MULTI so the write is dropped if another client touched the key.
func (s *QuotaStore) CompareAndSwap(ctx context.Context, userID string, old, next decimal.Decimal) (bool, error) {
	k := key(userID)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, k, fieldRemaining).Result()
		if errors.Is(err, goredis.Nil) {
			return errValueChanged
		}
		if err != nil {
			return err
		}
		current, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parse %s for %s: %w", fieldRemaining, userID, err)
		}
		if !current.Equal(old) {
			return errValueChanged
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldRemaining, next.String(), fieldUpdatedAt, s.timestamp())
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errValueChanged), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("compare-and-swap: %w", err)
	}
}

func (s *QuotaStore) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}
