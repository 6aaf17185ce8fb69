package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"transcribot/internal/app/model"
	"transcribot/internal/app/repository"
)

var (
	_ repository.QuotaDAO     = (*MockQuotaDAO)(nil)
	_ repository.QuotaSwapper = (*MockQuotaDAO)(nil)
)

// MockQuotaDAO is an in-memory quota store that counts writes.
type MockQuotaDAO struct {
	mu      sync.Mutex
	records map[string]model.QuotaRecord

	// ErrorMap makes a method ("Get", "Insert", "Upsert", "CompareAndSwap") fail.
	ErrorMap map[string]error
	// BeforeSwap runs once before the next CompareAndSwap, outside the lock,
	// so a test can slip in a concurrent write.
	BeforeSwap func()

	Inserts int
	Upserts int
	Swaps   int
	// FailedSwaps counts swaps rejected because the value had changed.
	FailedSwaps int
}

// NewMockQuotaDAO creates an empty store.
func NewMockQuotaDAO() *MockQuotaDAO {
	return &MockQuotaDAO{
		records:  make(map[string]model.QuotaRecord),
		ErrorMap: make(map[string]error),
	}
}

// WithRecord seeds a user's remaining seconds without counting a write.
func (m *MockQuotaDAO) WithRecord(userID string, remaining decimal.Decimal) *MockQuotaDAO {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = model.QuotaRecord{UserID: userID, RemainingSeconds: remaining, UpdatedAt: time.Now()}
	return m
}

// WithError makes method fail with err.
func (m *MockQuotaDAO) WithError(method string, err error) *MockQuotaDAO {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorMap[method] = err
	return m
}

// Remaining returns the stored value and whether the record exists.
func (m *MockQuotaDAO) Remaining(userID string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[userID]
	return record.RemainingSeconds, ok
}

// Writes counts successful mutations of existing or new records.
func (m *MockQuotaDAO) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Inserts + m.Upserts + m.Swaps
}

func (m *MockQuotaDAO) Close() error {
	return nil
}

func (m *MockQuotaDAO) Get(ctx context.Context, userID string) (model.QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ErrorMap["Get"]; err != nil {
		return model.QuotaRecord{}, err
	}
	record, ok := m.records[userID]
	if !ok {
		return model.QuotaRecord{}, repository.ErrQuotaNotFound
	}
	return record, nil
}

func (m *MockQuotaDAO) Insert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ErrorMap["Insert"]; err != nil {
		return err
	}
	if _, ok := m.records[userID]; ok {
		return nil
	}
	m.records[userID] = model.QuotaRecord{UserID: userID, RemainingSeconds: remaining, UpdatedAt: time.Now()}
	m.Inserts++
	return nil
}

func (m *MockQuotaDAO) Upsert(ctx context.Context, userID string, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ErrorMap["Upsert"]; err != nil {
		return err
	}
	m.records[userID] = model.QuotaRecord{UserID: userID, RemainingSeconds: remaining, UpdatedAt: time.Now()}
	m.Upserts++
	return nil
}

func (m *MockQuotaDAO) CompareAndSwap(ctx context.Context, userID string, old, next decimal.Decimal) (bool, error) {
	m.mu.Lock()
	hook := m.BeforeSwap
	m.BeforeSwap = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ErrorMap["CompareAndSwap"]; err != nil {
		return false, err
	}
	record, ok := m.records[userID]
	if !ok || !record.RemainingSeconds.Equal(old) {
		m.FailedSwaps++
		return false, nil
	}
	m.records[userID] = model.QuotaRecord{UserID: userID, RemainingSeconds: next, UpdatedAt: time.Now()}
	m.Swaps++
	return true, nil
}

// PlainQuotaDAO hides CompareAndSwap so callers fall back to Upsert.
type PlainQuotaDAO struct {
	repository.QuotaDAO
}
