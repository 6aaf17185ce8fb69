package orchestrator

import (
	"context"
	"fmt"
	"time"

	"transcribot/internal/app/model"
)

// Task performs one remote transcription and returns SRT text. It owns every
// resource it acquires and must release them itself, even when nobody is
// waiting for its result any more.
type Task func(ctx context.Context) (string, error)

type taskResult struct {
	text string
	err  error
}

// CallWithTimeout runs task on its own goroutine and waits at most timeout
// for it. On timeout the task is not cancelled: it keeps running on a
// context detached from ctx and its late result is dropped. Cancelling ctx
// stops the wait and reports a failure. A non-positive timeout waits
// without a deadline.
func CallWithTimeout(ctx context.Context, timeout time.Duration, task Task) model.ChunkResult {
	start := time.Now()
	results := make(chan taskResult, 1)
	taskCtx := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				results <- taskResult{err: fmt.Errorf("transcription task panicked: %v", p)}
			}
		}()
		text, err := task(taskCtx)
		results <- taskResult{text: text, err: err}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-results:
		if r.err != nil {
			return model.ChunkResult{Status: model.ChunkFailed, Err: r.err, Latency: time.Since(start)}
		}
		return model.ChunkResult{Status: model.ChunkSucceeded, Subtitle: r.text, Latency: time.Since(start)}
	case <-deadline:
		return model.ChunkResult{Status: model.ChunkTimedOut, Latency: time.Since(start)}
	case <-ctx.Done():
		return model.ChunkResult{Status: model.ChunkFailed, Err: ctx.Err(), Latency: time.Since(start)}
	}
}
