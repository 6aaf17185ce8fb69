package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TranscriptionJob is one incoming media message, owned by a single orchestrator run.
type TranscriptionJob struct {
	ID              string
	SourceFilePath  string
	MediaFormat     string
	UserID          string
	TotalDurationMs int64
}

// Chunk is a bounded time window of the source media.
type Chunk struct {
	Index      int
	StartMs    int64
	DurationMs int64
}

// EndMs returns the exclusive end of the window.
func (c Chunk) EndMs() int64 {
	return c.StartMs + c.DurationMs
}

// ChunkStatus tags a ChunkResult.
type ChunkStatus int

const (
	ChunkSucceeded ChunkStatus = iota
	ChunkFailed
	ChunkTimedOut
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkSucceeded:
		return "succeeded"
	case ChunkFailed:
		return "failed"
	case ChunkTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ChunkResult is the outcome of one bounded transcription call.
// Subtitle is set only for ChunkSucceeded, Err only for ChunkFailed.
type ChunkResult struct {
	Status   ChunkStatus
	Subtitle string
	Err      error
	Latency  time.Duration
}

// TranscriptionOutcome is handed back to the caller; it is never persisted.
type TranscriptionOutcome struct {
	JobID            string
	ResultText       string
	TruncationNotice *string

	TranscribedSeconds decimal.Decimal
	RequiredSeconds    decimal.Decimal
	RemainingSeconds   decimal.Decimal
	ChunkCount         int
}

// Truncated reports whether only a prefix of the media was transcribed.
func (o *TranscriptionOutcome) Truncated() bool {
	return o != nil && o.TruncationNotice != nil
}
