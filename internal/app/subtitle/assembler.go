package subtitle

import (
	"strings"
)

// Assemble turns one chunk's SRT payload into plain text: one line per
// non-empty cue, timing and indices dropped.
//
// When opensTranscript is true the first surviving cue is written without a
// leading newline. Otherwise every cue is newline-prefixed so the result can be
// appended directly to text produced for earlier chunks.
func Assemble(srt string, opensTranscript bool) (string, error) {
	cues, err := ParseSRT(srt)
	if err != nil {
		return "", err
	}
	return AssembleCues(cues, opensTranscript), nil
}

// AssembleCues is Assemble over already parsed cues.
func AssembleCues(cues []Cue, opensTranscript bool) string {
	var b strings.Builder
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		if !opensTranscript || b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	return b.String()
}
