package testutil

import (
	"fmt"
	"strings"
	"time"
)

// SRT builds a subtitle payload with one second per cue, the way the
// transcription API returns it.
func SRT(texts ...string) string {
	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n")
		}
		start := time.Duration(i) * time.Second
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, srtTime(start), srtTime(start+time.Second), text)
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

const (
	// TestUserID is a chat-platform style user identifier.
	TestUserID = "U4af4980629a1b2c3d4e5f60718293a4b"
	// Minute and TenMinutes are durations in milliseconds.
	Minute     int64 = 60_000
	TenMinutes int64 = 10 * Minute
)
