package api

import "context"

// Transcriber sends one self-contained media file to a speech-to-text service and
// returns the result as SRT subtitle text. language is a hint such as "ja"; empty means auto-detect.
type Transcriber interface {
	Transcript(ctx context.Context, inputFilePath string, language string) (string, error)
}
