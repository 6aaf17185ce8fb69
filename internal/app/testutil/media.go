package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"transcribot/internal/app/audio"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/model"
)

var (
	_ audio.Prober    = (*FakeMedia)(nil)
	_ audio.Extractor = (*FakeMedia)(nil)
)

// FakeMedia stands in for ffprobe and ffmpeg. Extract writes real files to Dir
// so tests can check they are removed.
type FakeMedia struct {
	mu sync.Mutex

	Dir        string
	DurationMs int64
	ProbeErr   error
	// ExtractErrMap fails the extraction of the chunk starting at the given offset.
	ExtractErrMap map[int64]error

	Probes    int
	Extracted []model.Chunk
	Paths     []string
}

// NewFakeMedia reports durationMs for every file and writes chunks under dir.
func NewFakeMedia(dir string, durationMs int64) *FakeMedia {
	return &FakeMedia{
		Dir:           dir,
		DurationMs:    durationMs,
		ExtractErrMap: make(map[int64]error),
	}
}

func (f *FakeMedia) Probe(ctx context.Context, filePath string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes++
	if f.ProbeErr != nil {
		return 0, apperrors.CorruptMedia(filePath, f.ProbeErr)
	}
	return f.DurationMs, nil
}

func (f *FakeMedia) Extract(ctx context.Context, filePath, format string, startMs, durationMs int64) (*audio.ChunkFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ExtractErrMap[startMs]; err != nil {
		return nil, apperrors.CorruptMedia(filePath, err)
	}

	index := len(f.Extracted)
	path := filepath.Join(f.Dir, fmt.Sprintf("chunk-%03d.%s", index, format))
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d+%d", startMs, durationMs)), 0o644); err != nil {
		return nil, err
	}
	f.Extracted = append(f.Extracted, model.Chunk{Index: index, StartMs: startMs, DurationMs: durationMs})
	f.Paths = append(f.Paths, path)
	return &audio.ChunkFile{Path: path}, nil
}

// Chunks returns the windows extracted so far.
func (f *FakeMedia) Chunks() []model.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Chunk(nil), f.Extracted...)
}

// LeftoverFiles lists chunk files that were never released.
func (f *FakeMedia) LeftoverFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var left []string
	for _, p := range f.Paths {
		if _, err := os.Stat(p); err == nil {
			left = append(left, p)
		}
	}
	return left
}
