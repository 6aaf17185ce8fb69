package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/model"
)

// Prober reports the total duration of a media file in milliseconds.
type Prober interface {
	Probe(ctx context.Context, filePath string) (int64, error)
}

// Extractor cuts [startMs, startMs+durationMs) out of a media file into a standalone temporary file.
type Extractor interface {
	Extract(ctx context.Context, filePath, format string, startMs, durationMs int64) (*ChunkFile, error)
}

// CommandRunner runs an external binary and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return output, fmt.Errorf("%s error: %v, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// ChunkFile is a temporary sub-clip. Whoever receives it must Release it.
type ChunkFile struct {
	Path string

	once sync.Once
	err  error
}

// Release deletes the file. It is safe to call more than once.
func (c *ChunkFile) Release() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			c.err = err
		}
	})
	return c.err
}

// FFmpeg implements Prober and Extractor on top of the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	runner      CommandRunner
}

var (
	_ Prober    = (*FFmpeg)(nil)
	_ Extractor = (*FFmpeg)(nil)
)

// NewFFmpeg creates media tools backed by the given binaries. Empty values fall back to PATH lookup and os.TempDir.
func NewFFmpeg(ffmpegPath, ffprobePath, tempDir string) *FFmpeg {
	return NewFFmpegWithRunner(ffmpegPath, ffprobePath, tempDir, execRunner{})
}

// NewFFmpegWithRunner is NewFFmpeg with a custom command runner.
func NewFFmpegWithRunner(ffmpegPath, ffprobePath, tempDir string, runner CommandRunner) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		runner:      runner,
	}
}

// Probe returns the container duration in milliseconds.
func (f *FFmpeg) Probe(ctx context.Context, filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, apperrors.CorruptMedia(filePath, err)
	}
	if info.IsDir() {
		return 0, apperrors.CorruptMedia(filePath, fmt.Errorf("is a directory"))
	}

	output, err := f.runner.Run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		filePath)
	if err != nil {
		return 0, apperrors.CorruptMedia(filePath, err)
	}

	durationMs, err := parseDurationMs(output)
	if err != nil {
		return 0, apperrors.CorruptMedia(filePath, err)
	}
	return durationMs, nil
}

func parseDurationMs(output []byte) (int64, error) {
	var probeOutput model.FFProbeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}

	raw := strings.TrimSpace(probeOutput.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("no duration in ffprobe output")
	}
	seconds, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if seconds.IsNegative() {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return seconds.Shift(3).Round(0).IntPart(), nil
}

// Extract stream-copies the requested window into a temp file named after format.
func (f *FFmpeg) Extract(ctx context.Context, filePath, format string, startMs, durationMs int64) (*ChunkFile, error) {
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		return nil, apperrors.CorruptMedia(filePath, fmt.Errorf("empty media format"))
	}
	if startMs < 0 || durationMs <= 0 {
		return nil, apperrors.CorruptMedia(filePath, fmt.Errorf("invalid window start=%dms duration=%dms", startMs, durationMs))
	}

	tmp, err := os.CreateTemp(f.tempDir, "chunk-*."+format)
	if err != nil {
		return nil, fmt.Errorf("create chunk file: %w", err)
	}
	chunk := &ChunkFile{Path: tmp.Name()}
	tmp.Close()

	_, err = f.runner.Run(ctx, f.ffmpegPath,
		"-y", "-v", "error",
		"-ss", msToSeconds(startMs),
		"-t", msToSeconds(durationMs),
		"-i", filePath,
		"-vn", "-acodec", "copy",
		chunk.Path)
	if err != nil {
		chunk.Release()
		return nil, apperrors.CorruptMedia(filePath, err)
	}
	return chunk, nil
}

func msToSeconds(ms int64) string {
	return decimal.NewFromInt(ms).Shift(-3).StringFixed(3)
}
