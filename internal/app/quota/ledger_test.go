package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/repository"
	"transcribot/internal/app/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T, store repository.QuotaDAO) *Ledger {
	return NewLedger(store, decimal.NewFromInt(DefaultAllotmentSeconds), zaptest.NewLogger(t))
}

func TestReserve(t *testing.T) {
	tests := []struct {
		name      string
		balance   string
		requested string
		wantNew   string
		exceeded  bool
	}{
		{"fits", "300", "120", "180", false},
		{"exact fit", "120", "120", "0", false},
		{"exceeds clamps to zero", "30", "120", "0", true},
		{"fractional", "90.5", "0.25", "90.25", false},
		{"just above minimum", "1", "5", "0", true},
	}

	for _, tt := range tests {
		for _, withSwap := range []bool{true, false} {
			name := tt.name + "/upsert"
			if withSwap {
				name = tt.name + "/cas"
			}
			t.Run(name, func(t *testing.T) {
				mockDAO := testutil.NewMockQuotaDAO().WithRecord("U1", dec(tt.balance))
				var store repository.QuotaDAO = mockDAO
				if !withSwap {
					store = testutil.PlainQuotaDAO{QuotaDAO: mockDAO}
				}

				res, err := newLedger(t, store).Reserve(context.Background(), "U1", dec(tt.requested))
				require.NoError(t, err)

				assert.True(t, res.Old.Equal(dec(tt.balance)))
				assert.True(t, res.New.Equal(dec(tt.wantNew)), "new = %s", res.New)
				assert.Equal(t, tt.exceeded, res.Exceeded())

				stored, _ := mockDAO.Remaining("U1")
				assert.True(t, stored.Equal(dec(tt.wantNew)))
				assert.Equal(t, 1, mockDAO.Writes())
			})
		}
	}
}

func TestReserve_ExhaustedWritesNothing(t *testing.T) {
	for _, balance := range []string{"0", "0.999"} {
		t.Run(balance, func(t *testing.T) {
			store := testutil.NewMockQuotaDAO().WithRecord("U1", dec(balance))

			_, err := newLedger(t, store).Reserve(context.Background(), "U1", dec("42.5"))

			require.Error(t, err)
			assert.Equal(t, apperrors.KindQuotaExhausted, apperrors.KindOf(err))
			required, ok := apperrors.RequiredSecondsOf(err)
			assert.True(t, ok)
			assert.True(t, required.Equal(dec("42.5")))
			assert.Equal(t, 0, store.Writes())
		})
	}
}

func TestReserve_FirstSeenUserGetsDefault(t *testing.T) {
	store := testutil.NewMockQuotaDAO()

	res, err := newLedger(t, store).Reserve(context.Background(), "U-new", dec("100"))
	require.NoError(t, err)

	assert.True(t, res.Old.Equal(dec("300")))
	assert.True(t, res.New.Equal(dec("200")))
	assert.Equal(t, 1, store.Inserts)
	assert.Equal(t, 1, store.Swaps)
}

func TestReserve_RetriesOnConcurrentChange(t *testing.T) {
	store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("300"))
	ledger := newLedger(t, store)

	// Another job reserves 100 s between our read and our swap.
	store.BeforeSwap = func() {
		require.NoError(t, store.Upsert(context.Background(), "U1", dec("200")))
	}

	res, err := ledger.Reserve(context.Background(), "U1", dec("50"))
	require.NoError(t, err)

	assert.True(t, res.Old.Equal(dec("200")), "reservation must be based on the re-read balance")
	assert.True(t, res.New.Equal(dec("150")))
	assert.Equal(t, 1, store.FailedSwaps)

	stored, _ := store.Remaining("U1")
	assert.True(t, stored.Equal(dec("150")), "both writers are reflected")
}

func TestReserve_GivesUpUnderContention(t *testing.T) {
	store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("300"))
	ledger := newLedger(t, store)

	var bump func()
	bump = func() {
		current, _ := store.Remaining("U1")
		require.NoError(t, store.Upsert(context.Background(), "U1", current.Sub(decimal.NewFromInt(1))))
		store.BeforeSwap = bump
	}
	store.BeforeSwap = bump

	_, err := ledger.Reserve(context.Background(), "U1", dec("10"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindQuotaStore, apperrors.KindOf(err))
	assert.Equal(t, defaultMaxAttempts, store.FailedSwaps)
}

func TestReserve_StoreErrors(t *testing.T) {
	boom := errors.New("connection refused")

	for _, method := range []string{"Get", "Insert", "CompareAndSwap"} {
		t.Run(method, func(t *testing.T) {
			store := testutil.NewMockQuotaDAO().WithError(method, boom)
			if method == "CompareAndSwap" {
				store.WithRecord("U1", dec("300"))
			}

			_, err := newLedger(t, store).Reserve(context.Background(), "U1", dec("10"))
			require.Error(t, err)
			assert.Equal(t, apperrors.KindQuotaStore, apperrors.KindOf(err))
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestRollback(t *testing.T) {
	store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("300"))
	ledger := newLedger(t, store)
	ctx := context.Background()

	res, err := ledger.Reserve(ctx, "U1", dec("120"))
	require.NoError(t, err)

	require.NoError(t, ledger.Rollback(ctx, "U1", res.Old))
	require.NoError(t, ledger.Rollback(ctx, "U1", res.Old))

	stored, _ := store.Remaining("U1")
	assert.True(t, stored.Equal(dec("300")))
}

func TestRollback_StoreError(t *testing.T) {
	store := testutil.NewMockQuotaDAO().WithError("Upsert", errors.New("read-only"))

	err := newLedger(t, store).Rollback(context.Background(), "U1", dec("5"))
	assert.Equal(t, apperrors.KindQuotaStore, apperrors.KindOf(err))
}

func TestBalance(t *testing.T) {
	store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("12.5"))
	ledger := newLedger(t, store)

	got, err := ledger.Balance(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12.5")))

	got, err = ledger.Balance(context.Background(), "U-unknown")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("300")))
	assert.Equal(t, 0, store.Writes(), "balance lookups never create records")
}

func TestCredit(t *testing.T) {
	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("20"))
		got, err := newLedger(t, store).Credit(ctx, "U1", dec("3600"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("3620")))
	})

	t.Run("unknown user gets default plus credit", func(t *testing.T) {
		store := testutil.NewMockQuotaDAO()
		got, err := newLedger(t, store).Credit(ctx, "U-new", dec("600"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("900")))

		stored, ok := store.Remaining("U-new")
		assert.True(t, ok)
		assert.True(t, stored.Equal(dec("900")))
	})

	t.Run("without compare-and-swap", func(t *testing.T) {
		store := testutil.NewMockQuotaDAO().WithRecord("U1", dec("1"))
		got, err := newLedger(t, testutil.PlainQuotaDAO{QuotaDAO: store}).Credit(ctx, "U1", dec("59"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("60")))
		assert.Equal(t, 1, store.Upserts)
	})

	t.Run("rejects non-positive", func(t *testing.T) {
		store := testutil.NewMockQuotaDAO()
		_, err := newLedger(t, store).Credit(ctx, "U1", decimal.Zero)
		assert.Error(t, err)
		assert.Equal(t, 0, store.Writes())
	})
}
