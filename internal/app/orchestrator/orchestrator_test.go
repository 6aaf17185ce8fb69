package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/metrics"
	"transcribot/internal/app/model"
	"transcribot/internal/app/quota"
	"transcribot/internal/app/testutil"
)

type fixture struct {
	media       *testutil.FakeMedia
	transcriber *testutil.MockTranscriber
	store       *testutil.MockQuotaDAO
	registry    *prometheus.Registry
	orch        *Orchestrator
}

func newFixture(t *testing.T, durationMs int64, balance string, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		media:       testutil.NewFakeMedia(t.TempDir(), durationMs),
		transcriber: testutil.NewMockTranscriber(),
		store:       testutil.NewMockQuotaDAO(),
		registry:    prometheus.NewRegistry(),
	}
	if balance != "" {
		f.store.WithRecord(testutil.TestUserID, decimal.RequireFromString(balance))
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "ja"
	}

	logger := zaptest.NewLogger(t)
	ledger := quota.NewLedger(f.store, decimal.NewFromInt(quota.DefaultAllotmentSeconds), logger)
	opts = append([]Option{WithMetrics(metrics.NewRecorder(f.registry))}, opts...)
	f.orch = New(f.media, f.media, f.transcriber, ledger, logger, cfg, opts...)
	return f
}

func (f *fixture) job() model.TranscriptionJob {
	return model.TranscriptionJob{
		SourceFilePath: "/audio/message.m4a",
		MediaFormat:    "m4a",
		UserID:         testutil.TestUserID,
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	remaining, ok := f.store.Remaining(testutil.TestUserID)
	require.True(t, ok)
	return remaining
}

func (f *fixture) assertJobs(t *testing.T, outcome string) {
	t.Helper()
	expected := `
# HELP transcribot_jobs_total Transcription jobs by final outcome.
# TYPE transcribot_jobs_total counter
transcribot_jobs_total{outcome="` + outcome + `"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(f.registry, strings.NewReader(expected), "transcribot_jobs_total"))
}

func TestTranscribe_TwentyMinutesIsTwoChunks(t *testing.T) {
	f := newFixture(t, 20*testutil.Minute, "3600", Config{})
	f.transcriber.
		SetResponseForCall(0, testutil.SRT("", "hello", "  ")).
		SetResponseForCall(1, testutil.SRT("world"))

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	assert.Equal(t, "hello\nworld", outcome.ResultText)
	assert.Nil(t, outcome.TruncationNotice)
	assert.False(t, outcome.Truncated())
	assert.NotEmpty(t, outcome.JobID)
	assert.Equal(t, 2, outcome.ChunkCount)
	assert.True(t, outcome.RequiredSeconds.Equal(decimal.NewFromInt(1200)))
	assert.True(t, outcome.TranscribedSeconds.Equal(decimal.NewFromInt(1200)))
	assert.True(t, outcome.RemainingSeconds.Equal(decimal.NewFromInt(2400)))

	assert.Equal(t, []model.Chunk{
		{Index: 0, StartMs: 0, DurationMs: 600000},
		{Index: 1, StartMs: 600000, DurationMs: 600000},
	}, f.media.Chunks())

	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(2400)))
	assert.Equal(t, 1, f.store.Writes(), "exactly one decrement per job")
	assert.Empty(t, f.media.LeftoverFiles())

	for _, call := range f.transcriber.GetCallHistory() {
		assert.True(t, call.FileExisted)
		assert.Equal(t, "ja", call.Language)
	}
	f.assertJobs(t, metrics.OutcomeSucceeded)
}

func TestTranscribe_WithinQuotaIsNotTruncated(t *testing.T) {
	f := newFixture(t, 90500, "90.5", Config{})

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	assert.Nil(t, outcome.TruncationNotice)
	assert.Equal(t, []model.Chunk{{Index: 0, StartMs: 0, DurationMs: 90500}}, f.media.Chunks())
	assert.True(t, f.balance(t).IsZero())
}

func TestTranscribe_TruncatesToRemainingQuota(t *testing.T) {
	f := newFixture(t, 120000, "30", Config{})
	f.transcriber.WithDefaultResponse(testutil.SRT("first thirty seconds"))

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	assert.Equal(t, []model.Chunk{{Index: 0, StartMs: 0, DurationMs: 30000}}, f.media.Chunks())
	assert.Equal(t, "first thirty seconds", outcome.ResultText)
	require.NotNil(t, outcome.TruncationNotice)
	assert.Contains(t, *outcome.TruncationNotice, "30 sec")
	assert.Contains(t, *outcome.TruncationNotice, "2 min")
	assert.True(t, outcome.TranscribedSeconds.Equal(decimal.NewFromInt(30)))
	assert.True(t, outcome.RequiredSeconds.Equal(decimal.NewFromInt(120)))
	assert.True(t, outcome.RemainingSeconds.IsZero())
	assert.True(t, f.balance(t).IsZero())
	f.assertJobs(t, metrics.OutcomeTruncated)
}

func TestTranscribe_FractionalQuotaTruncatesToWholeMilliseconds(t *testing.T) {
	f := newFixture(t, 60000, "1.2345", Config{})

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	assert.Equal(t, []model.Chunk{{Index: 0, StartMs: 0, DurationMs: 1234}}, f.media.Chunks())
	assert.True(t, outcome.Truncated())
}

func TestTranscribe_QuotaExhausted(t *testing.T) {
	f := newFixture(t, 120000, "0.5", Config{})

	outcome, err := f.orch.Transcribe(context.Background(), f.job())

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindQuotaExhausted, apperrors.KindOf(err))
	required, ok := apperrors.RequiredSecondsOf(err)
	require.True(t, ok)
	assert.True(t, required.Equal(decimal.NewFromInt(120)))

	assert.Equal(t, 0, f.store.Writes())
	assert.Empty(t, f.media.Chunks())
	assert.Equal(t, 0, f.transcriber.GetCallCount())
	f.assertJobs(t, metrics.OutcomeQuotaExhausted)
}

func TestTranscribe_FirstSeenUserGetsDefaultAllotment(t *testing.T) {
	f := newFixture(t, 60000, "", Config{})

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	assert.True(t, outcome.RemainingSeconds.Equal(decimal.NewFromInt(240)))
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(240)))
}

func TestTranscribe_CorruptMedia(t *testing.T) {
	f := newFixture(t, 0, "300", Config{})
	f.media.ProbeErr = errors.New("moov atom not found")

	_, err := f.orch.Transcribe(context.Background(), f.job())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindCorruptMedia, apperrors.KindOf(err))
	assert.Equal(t, 0, f.store.Writes())
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(300)))
	f.assertJobs(t, metrics.OutcomeCorruptMedia)
}

func TestTranscribe_TimeoutRollsBackAndAbortsJob(t *testing.T) {
	f := newFixture(t, 25*testutil.Minute, "3600", Config{Timeout: 50 * time.Millisecond})
	f.transcriber.
		SetResponseForCall(0, testutil.SRT("partial")).
		SetLatencyForCall(1, 300*time.Millisecond).
		SetResponseForCall(1, testutil.SRT("too late"))

	outcome, err := f.orch.Transcribe(context.Background(), f.job())

	assert.Nil(t, outcome, "partial text is never returned")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranscriptionTimeout, apperrors.KindOf(err))
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(3600)), "quota is restored to the pre-job value")
	assert.Len(t, f.media.Chunks(), 2, "remaining chunks are not attempted")

	// The abandoned call finishes on its own and still removes its chunk file.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Drain(ctx))
	assert.Len(t, f.transcriber.GetCallHistory(), 2)
	assert.Empty(t, f.media.LeftoverFiles())
	f.assertJobs(t, metrics.OutcomeTimeout)
}

func TestDrain_WaitsForAbandonedCall(t *testing.T) {
	f := newFixture(t, 5*testutil.Minute, "3600", Config{Timeout: 20 * time.Millisecond})
	f.transcriber.SetLatencyForCall(0, 300*time.Millisecond)

	// Copies made with With share the in-flight set.
	orch := f.orch.With(WithObserver(func(done, total int) {}))
	_, err := orch.Transcribe(context.Background(), f.job())
	require.Error(t, err)
	require.Len(t, f.media.Chunks(), 1)
	assert.Empty(t, f.transcriber.GetCallHistory(), "the call is still running")

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	err = f.orch.Drain(short)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	long, cancelLong := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelLong()
	require.NoError(t, f.orch.Drain(long))
	assert.Len(t, f.transcriber.GetCallHistory(), 1)
	assert.Empty(t, f.media.LeftoverFiles(), "chunk file is removed before Drain returns")
}

func TestDrain_NothingInFlight(t *testing.T) {
	f := newFixture(t, 60000, "300", Config{})

	_, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, f.orch.Drain(ctx))
}

func TestTranscribe_FailureRollsBack(t *testing.T) {
	f := newFixture(t, 25*testutil.Minute, "3600", Config{})
	apiErr := errors.New("error, status code: 500, message: server error")
	f.transcriber.SetErrorForCall(1, apiErr)

	outcome, err := f.orch.Transcribe(context.Background(), f.job())

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranscriptionFailure, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apiErr)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(3600)))
	assert.Equal(t, 2, f.transcriber.GetCallCount())
	assert.Empty(t, f.media.LeftoverFiles())
	f.assertJobs(t, metrics.OutcomeFailure)
}

func TestTranscribe_RollbackRestoresTruncatedReservation(t *testing.T) {
	f := newFixture(t, 120000, "30", Config{})
	f.transcriber.WithDefaultError(errors.New("connection reset"))

	_, err := f.orch.Transcribe(context.Background(), f.job())

	require.Error(t, err)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(30)))
}

func TestTranscribe_ExtractionFailure(t *testing.T) {
	f := newFixture(t, 20*testutil.Minute, "3600", Config{})
	f.media.ExtractErrMap[600000] = errors.New("Invalid data found when processing input")

	_, err := f.orch.Transcribe(context.Background(), f.job())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranscriptionFailure, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "chunk 1")
	assert.Contains(t, err.Error(), "Invalid data found when processing input")
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(3600)))
	assert.Equal(t, 1, f.transcriber.GetCallCount())
	assert.Empty(t, f.media.LeftoverFiles())
}

func TestTranscribe_UnparseableResponse(t *testing.T) {
	f := newFixture(t, 60000, "300", Config{})
	f.transcriber.WithDefaultResponse(`{"text":"json instead of srt"}`)

	_, err := f.orch.Transcribe(context.Background(), f.job())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranscriptionFailure, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "parse srt")
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(300)))
}

func TestTranscribe_EmptyFirstChunkDoesNotPrefixNewline(t *testing.T) {
	f := newFixture(t, 20*testutil.Minute, "3600", Config{})
	f.transcriber.
		SetResponseForCall(0, testutil.SRT(" ", "")).
		SetResponseForCall(1, testutil.SRT("world", "again"))

	outcome, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)
	assert.Equal(t, "world\nagain", outcome.ResultText)
}

func TestTranscribe_CallerCancellation(t *testing.T) {
	f := newFixture(t, 20*testutil.Minute, "3600", Config{})
	f.transcriber.SetLatencyForCall(0, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := f.orch.Transcribe(ctx, f.job())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindTranscriptionFailure, apperrors.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.balance(t).Equal(decimal.NewFromInt(3600)), "rollback is written despite cancellation")
	assert.Eventually(t, func() bool { return len(f.media.LeftoverFiles()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTranscribe_RollbackFailureKeepsJobError(t *testing.T) {
	f := newFixture(t, 60000, "300", Config{})
	f.transcriber.WithDefaultError(errors.New("boom"))
	f.store.WithError("Upsert", errors.New("read-only replica"))

	_, err := f.orch.Transcribe(context.Background(), f.job())

	assert.Equal(t, apperrors.KindTranscriptionFailure, apperrors.KindOf(err))
	expected := `
# HELP transcribot_quota_rollback_failures_total Rollbacks that could not be written.
# TYPE transcribot_quota_rollback_failures_total counter
transcribot_quota_rollback_failures_total 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(f.registry, strings.NewReader(expected), "transcribot_quota_rollback_failures_total"))
}

type fakeArchiver struct {
	mu    sync.Mutex
	err   error
	saved map[string]string
}

func (a *fakeArchiver) Archive(ctx context.Context, userID, sourcePath, transcript string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.saved == nil {
		a.saved = make(map[string]string)
	}
	a.saved[userID] = transcript
	return "transcripts/" + userID + "/x.txt", nil
}

func TestTranscribe_Archive(t *testing.T) {
	t.Run("stores the transcript", func(t *testing.T) {
		archiver := &fakeArchiver{}
		f := newFixture(t, 60000, "300", Config{}, WithArchive(archiver))
		f.transcriber.WithDefaultResponse(testutil.SRT("keep me"))

		_, err := f.orch.Transcribe(context.Background(), f.job())
		require.NoError(t, err)
		assert.Equal(t, "keep me", archiver.saved[testutil.TestUserID])
	})

	t.Run("archive errors do not fail the job", func(t *testing.T) {
		archiver := &fakeArchiver{err: errors.New("bucket missing")}
		f := newFixture(t, 60000, "300", Config{}, WithArchive(archiver))

		outcome, err := f.orch.Transcribe(context.Background(), f.job())
		require.NoError(t, err)
		assert.NotNil(t, outcome)
	})
}

func TestTranscribe_Observer(t *testing.T) {
	var calls [][2]int
	f := newFixture(t, 20*testutil.Minute, "3600", Config{})
	orch := f.orch.With(WithObserver(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}))

	_, err := orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}, {2, 2}}, calls)
	assert.Nil(t, f.orch.observer, "With must not modify the original")
}

func TestTranscribe_SequentialChunks(t *testing.T) {
	f := newFixture(t, 30*testutil.Minute, "3600", Config{})
	f.transcriber.WithDefaultLatency(20 * time.Millisecond)

	_, err := f.orch.Transcribe(context.Background(), f.job())
	require.NoError(t, err)

	history := f.transcriber.GetCallHistory()
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		prevEnd := history[i-1].Timestamp.Add(history[i-1].Duration)
		assert.False(t, history[i].Timestamp.Before(prevEnd), "chunk %d started before chunk %d finished", i, i-1)
	}
}

func TestNew_ClampsChunkDuration(t *testing.T) {
	f := newFixture(t, 0, "300", Config{ChunkDuration: time.Hour})
	assert.Equal(t, MaxChunkDuration, f.orch.cfg.ChunkDuration)

	g := newFixture(t, 0, "300", Config{ChunkDuration: time.Minute})
	assert.Equal(t, time.Minute, g.orch.cfg.ChunkDuration)
}
