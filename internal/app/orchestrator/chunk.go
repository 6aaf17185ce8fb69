package orchestrator

import (
	"time"

	"transcribot/internal/app/model"
)

// MaxChunkDuration bounds every window sent to the remote service.
const MaxChunkDuration = 10 * time.Minute

// PartitionChunks splits [0, totalMs) into contiguous windows of at most
// maxChunkMs, zero-indexed in ascending order. A non-positive maxChunkMs
// uses MaxChunkDuration.
func PartitionChunks(totalMs, maxChunkMs int64) []model.Chunk {
	if totalMs <= 0 {
		return nil
	}
	if maxChunkMs <= 0 {
		maxChunkMs = MaxChunkDuration.Milliseconds()
	}

	chunks := make([]model.Chunk, 0, (totalMs+maxChunkMs-1)/maxChunkMs)
	for start := int64(0); start < totalMs; start += maxChunkMs {
		chunks = append(chunks, model.Chunk{
			Index:      len(chunks),
			StartMs:    start,
			DurationMs: min(maxChunkMs, totalMs-start),
		})
	}
	return chunks
}
