package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "transcribot/internal/app/errors"
)

type recordedCall struct {
	name string
	args []string
}

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	output []byte
	err    error
	calls  []recordedCall
	// onRun sees the arguments before the canned result is returned.
	onRun func(args []string)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	if f.onRun != nil {
		f.onRun(args)
	}
	return f.output, f.err
}

func writeMediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.m4a")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestParseDurationMs(t *testing.T) {
	tests := []struct {
		name          string
		output        string
		expected      int64
		expectError   bool
		errorContains string
	}{
		{name: "integer seconds", output: `{"format":{"duration":"30"}}`, expected: 30000},
		{name: "fractional seconds", output: `{"format":{"duration":"45.678000"}}`, expected: 45678},
		{name: "sub-millisecond rounds", output: `{"format":{"duration":"1.0005"}}`, expected: 1001},
		{name: "two hours", output: `{"format":{"duration":"7200.000000"}}`, expected: 7200000},
		{name: "zero", output: `{"format":{"duration":"0.000000"}}`, expected: 0},
		{name: "missing duration", output: `{"format":{}}`, expectError: true, errorContains: "no duration"},
		{name: "not available", output: `{"format":{"duration":"N/A"}}`, expectError: true, errorContains: "no duration"},
		{name: "negative", output: `{"format":{"duration":"-5.0"}}`, expectError: true, errorContains: "negative"},
		{name: "garbage", output: `not json`, expectError: true, errorContains: "ffprobe parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationMs([]byte(tt.output))
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFFmpeg_Probe(t *testing.T) {
	t.Run("reads duration from ffprobe", func(t *testing.T) {
		runner := &fakeRunner{output: []byte(`{"format":{"filename":"input.m4a","duration":"120.250000"}}`)}
		tools := NewFFmpegWithRunner("", "/opt/bin/ffprobe", "", runner)
		path := writeMediaFile(t)

		got, err := tools.Probe(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, int64(120250), got)

		require.Len(t, runner.calls, 1)
		assert.Equal(t, "/opt/bin/ffprobe", runner.calls[0].name)
		assert.Equal(t, path, runner.calls[0].args[len(runner.calls[0].args)-1])
	})

	t.Run("missing file is corrupt media without running ffprobe", func(t *testing.T) {
		runner := &fakeRunner{}
		tools := NewFFmpegWithRunner("", "", "", runner)

		_, err := tools.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
		assert.Equal(t, apperrors.KindCorruptMedia, apperrors.KindOf(err))
		assert.Empty(t, runner.calls)
	})

	t.Run("ffprobe failure is corrupt media", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("ffprobe error: exit status 1")}
		tools := NewFFmpegWithRunner("", "", "", runner)

		_, err := tools.Probe(context.Background(), writeMediaFile(t))
		assert.Equal(t, apperrors.KindCorruptMedia, apperrors.KindOf(err))
		assert.Contains(t, err.Error(), "exit status 1")
	})

	t.Run("probing leaves the source untouched", func(t *testing.T) {
		runner := &fakeRunner{output: []byte(`{"format":{"duration":"1.0"}}`)}
		tools := NewFFmpegWithRunner("", "", "", runner)
		path := writeMediaFile(t)

		_, err := tools.Probe(context.Background(), path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "not really audio", string(data))
	})
}

func TestFFmpeg_Extract(t *testing.T) {
	t.Run("stream copies the requested window", func(t *testing.T) {
		runner := &fakeRunner{}
		dir := t.TempDir()
		tools := NewFFmpegWithRunner("/opt/bin/ffmpeg", "", dir, runner)
		source := writeMediaFile(t)

		chunk, err := tools.Extract(context.Background(), source, "m4a", 600000, 45500)
		require.NoError(t, err)
		defer chunk.Release()

		assert.Equal(t, dir, filepath.Dir(chunk.Path))
		assert.Equal(t, ".m4a", filepath.Ext(chunk.Path))
		assert.FileExists(t, chunk.Path)

		require.Len(t, runner.calls, 1)
		call := runner.calls[0]
		assert.Equal(t, "/opt/bin/ffmpeg", call.name)
		assert.Equal(t, []string{
			"-y", "-v", "error",
			"-ss", "600.000",
			"-t", "45.500",
			"-i", source,
			"-vn", "-acodec", "copy",
			chunk.Path,
		}, call.args)
		assert.NotContains(t, call.args, "libmp3lame")
	})

	t.Run("release removes the file once", func(t *testing.T) {
		tools := NewFFmpegWithRunner("", "", t.TempDir(), &fakeRunner{})

		chunk, err := tools.Extract(context.Background(), writeMediaFile(t), ".mp3", 0, 1000)
		require.NoError(t, err)

		require.NoError(t, chunk.Release())
		assert.NoFileExists(t, chunk.Path)
		assert.NoError(t, chunk.Release())
	})

	t.Run("ffmpeg failure removes the output", func(t *testing.T) {
		var outputPath string
		runner := &fakeRunner{
			err: errors.New("ffmpeg error: exit status 1"),
			onRun: func(args []string) {
				outputPath = args[len(args)-1]
			},
		}
		tools := NewFFmpegWithRunner("", "", t.TempDir(), runner)

		chunk, err := tools.Extract(context.Background(), writeMediaFile(t), "wav", 0, 1000)
		assert.Nil(t, chunk)
		assert.Equal(t, apperrors.KindCorruptMedia, apperrors.KindOf(err))
		require.NotEmpty(t, outputPath)
		assert.NoFileExists(t, outputPath)
	})

	t.Run("rejects empty windows", func(t *testing.T) {
		runner := &fakeRunner{}
		tools := NewFFmpegWithRunner("", "", t.TempDir(), runner)

		_, err := tools.Extract(context.Background(), writeMediaFile(t), "wav", 0, 0)
		assert.Equal(t, apperrors.KindCorruptMedia, apperrors.KindOf(err))
		assert.Empty(t, runner.calls)
	})
}
