package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"transcribot/internal/app/api"
	"transcribot/internal/app/audio"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/message"
	"transcribot/internal/app/metrics"
	"transcribot/internal/app/model"
	"transcribot/internal/app/quota"
	"transcribot/internal/app/subtitle"
)

// Config tunes a single job run.
type Config struct {
	// ChunkDuration is capped at MaxChunkDuration.
	ChunkDuration time.Duration
	// Timeout bounds the wait for each chunk.
	Timeout  time.Duration
	Language string
}

// Archiver stores a finished transcript and returns where it was put.
type Archiver interface {
	Archive(ctx context.Context, userID, sourcePath, transcript string) (string, error)
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithMetrics records job and chunk metrics.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = recorder }
}

// WithArchive stores every successful transcript.
func WithArchive(archiver Archiver) Option {
	return func(o *Orchestrator) { o.archive = archiver }
}

// WithObserver is told how many chunks are done after partitioning and after every chunk.
func WithObserver(fn func(done, total int)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator turns one media file into one transcript while keeping the
// user's quota consistent with what was delivered.
type Orchestrator struct {
	prober      audio.Prober
	extractor   audio.Extractor
	transcriber api.Transcriber
	ledger      *quota.Ledger
	logger      *zap.Logger
	cfg         Config

	metrics  *metrics.Recorder
	archive  Archiver
	observer func(done, total int)

	// inflight counts chunk tasks that have not returned yet, abandoned ones included.
	// Copies made by With share it.
	inflight *sync.WaitGroup
}

// New creates an Orchestrator.
func New(prober audio.Prober, extractor audio.Extractor, transcriber api.Transcriber,
	ledger *quota.Ledger, logger *zap.Logger, cfg Config, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkDuration <= 0 || cfg.ChunkDuration > MaxChunkDuration {
		cfg.ChunkDuration = MaxChunkDuration
	}

	o := &Orchestrator{
		prober:      prober,
		extractor:   extractor,
		transcriber: transcriber,
		ledger:      ledger,
		logger:      logger.Named("orchestrator"),
		cfg:         cfg,
		inflight:    &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// With returns a copy of o with extra options applied.
func (o *Orchestrator) With(opts ...Option) *Orchestrator {
	clone := *o
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// Transcribe runs the job to completion. Chunks are transcribed one after
// another; the first timeout or failure restores the user's quota and
// discards any text produced so far.
func (o *Orchestrator) Transcribe(ctx context.Context, job model.TranscriptionJob) (*model.TranscriptionOutcome, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	log := o.logger.With(
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("format", job.MediaFormat),
	)

	totalMs, err := o.prober.Probe(ctx, job.SourceFilePath)
	if err != nil {
		if !apperrors.IsKind(err, apperrors.KindCorruptMedia) {
			err = apperrors.CorruptMedia(job.SourceFilePath, err)
		}
		log.Warn("probe failed", zap.Error(err))
		o.metrics.RecordJob(metrics.OutcomeCorruptMedia)
		return nil, err
	}
	job.TotalDurationMs = totalMs
	requested := decimal.New(totalMs, -3)

	reservation, err := o.ledger.Reserve(ctx, job.UserID, requested)
	if err != nil {
		log.Info("reservation refused", zap.Error(err))
		o.metrics.RecordJob(outcomeFor(err))
		return nil, err
	}

	effectiveMs := totalMs
	var notice *string
	if reservation.Exceeded() {
		effectiveMs = reservation.Old.Shift(3).IntPart()
		text := message.TruncationNotice(reservation.Old, requested)
		notice = &text
	}
	transcribed := decimal.New(effectiveMs, -3)

	chunks := PartitionChunks(effectiveMs, o.cfg.ChunkDuration.Milliseconds())
	log.Info("transcription started",
		zap.Int64("total_ms", totalMs),
		zap.Int64("effective_ms", effectiveMs),
		zap.Int("chunks", len(chunks)),
		zap.String("remaining_sec", reservation.New.String()))
	o.notify(0, len(chunks))

	var transcript strings.Builder
	for _, chunk := range chunks {
		chunkLog := log.With(
			zap.Int("chunk", chunk.Index),
			zap.Int64("start_ms", chunk.StartMs),
			zap.Int64("duration_ms", chunk.DurationMs))

		result := CallWithTimeout(ctx, o.cfg.Timeout, o.chunkTask(job, chunk, chunkLog))
		o.metrics.RecordChunk(result.Status, result.Latency)

		switch result.Status {
		case model.ChunkTimedOut:
			chunkLog.Warn("chunk timed out", zap.Duration("timeout", o.cfg.Timeout))
			o.rollback(ctx, log, reservation)
			o.metrics.RecordJob(metrics.OutcomeTimeout)
			return nil, apperrors.TranscriptionTimeout(chunk.Index, o.cfg.Timeout)

		case model.ChunkFailed:
			chunkLog.Warn("chunk failed", zap.Error(result.Err), zap.Duration("latency", result.Latency))
			o.rollback(ctx, log, reservation)
			// Extraction errors count too; the cause stays reachable through Unwrap.
			o.metrics.RecordJob(metrics.OutcomeFailure)
			return nil, apperrors.TranscriptionFailure(chunk.Index, result.Err)
		}

		text, err := subtitle.Assemble(result.Subtitle, transcript.Len() == 0)
		if err != nil {
			chunkLog.Warn("unparseable subtitle response", zap.Error(err))
			o.rollback(ctx, log, reservation)
			o.metrics.RecordJob(metrics.OutcomeFailure)
			return nil, apperrors.TranscriptionFailure(chunk.Index, fmt.Errorf("parse srt: %w", err))
		}
		transcript.WriteString(text)

		chunkLog.Debug("chunk transcribed", zap.Duration("latency", result.Latency), zap.Int("chars", len(text)))
		o.notify(chunk.Index+1, len(chunks))
	}

	outcome := &model.TranscriptionOutcome{
		JobID:              job.ID,
		ResultText:         transcript.String(),
		TruncationNotice:   notice,
		TranscribedSeconds: transcribed,
		RequiredSeconds:    requested,
		RemainingSeconds:   reservation.New,
		ChunkCount:         len(chunks),
	}

	if o.archive != nil {
		if location, err := o.archive.Archive(ctx, job.UserID, job.SourceFilePath, outcome.ResultText); err != nil {
			log.Warn("archive failed", zap.Error(err))
		} else {
			log.Debug("transcript archived", zap.String("location", location))
		}
	}

	o.metrics.RecordTranscribed(transcribed)
	if outcome.Truncated() {
		o.metrics.RecordJob(metrics.OutcomeTruncated)
	} else {
		o.metrics.RecordJob(metrics.OutcomeSucceeded)
	}
	log.Info("transcription finished",
		zap.Bool("truncated", outcome.Truncated()),
		zap.Int("chars", len(outcome.ResultText)))

	return outcome, nil
}

// chunkTask cuts the chunk and sends it. The chunk file is released by the
// task, so it is removed even if the waiter has already given up.
func (o *Orchestrator) chunkTask(job model.TranscriptionJob, chunk model.Chunk, log *zap.Logger) Task {
	o.inflight.Add(1)
	return func(ctx context.Context) (string, error) {
		defer o.inflight.Done()

		chunkFile, err := o.extractor.Extract(ctx, job.SourceFilePath, job.MediaFormat, chunk.StartMs, chunk.DurationMs)
		if err != nil {
			return "", err
		}
		defer func() {
			if err := chunkFile.Release(); err != nil {
				log.Warn("failed to remove chunk file", zap.String("path", chunkFile.Path), zap.Error(err))
			}
		}()

		return o.transcriber.Transcript(ctx, chunkFile.Path, o.cfg.Language)
	}
}

// Drain blocks until every chunk task started so far has returned and
// released its chunk file, including tasks abandoned after a timeout. Call it
// before the process exits.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chunk calls still running: %w", ctx.Err())
	}
}

// rollback restores the balance seen before the reservation. A failed
// rollback is logged; the job's own error is what the caller sees.
func (o *Orchestrator) rollback(ctx context.Context, log *zap.Logger, reservation quota.Reservation) {
	ctx = context.WithoutCancel(ctx)
	if err := o.ledger.Rollback(ctx, reservation.UserID, reservation.Old); err != nil {
		log.Error("quota rollback failed",
			zap.String("restore_sec", reservation.Old.String()),
			zap.Error(err))
		o.metrics.RecordRollbackFailure()
		return
	}
	refunded := reservation.Old.Sub(reservation.New)
	log.Info("quota rolled back", zap.String("refunded_sec", refunded.String()))
	o.metrics.RecordRefund(refunded)
}

func (o *Orchestrator) notify(done, total int) {
	if o.observer != nil {
		o.observer(done, total)
	}
}

func outcomeFor(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindQuotaExhausted:
		return metrics.OutcomeQuotaExhausted
	case apperrors.KindQuotaStore:
		return metrics.OutcomeStoreError
	case apperrors.KindCorruptMedia:
		return metrics.OutcomeCorruptMedia
	case apperrors.KindTranscriptionTimeout:
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailure
	}
}
