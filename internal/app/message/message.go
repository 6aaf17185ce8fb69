package message

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/model"
)

// DefaultPageLimit is the longest text the chat platform accepts in one message.
const DefaultPageLimit = 5000

// AcceptedFormats lists the media containers the extractor can stream-copy.
var AcceptedFormats = []string{"m4a", "mp3", "mp4", "wav"}

var contentTypeFormats = map[string]string{
	"audio/aac":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/m4a":   "m4a",
	"audio/mp4":   "m4a",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mpeg3": "mp3",
	"video/mp4":   "mp4",
	"video/mpeg4": "mp4",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
}

var sixty = decimal.NewFromInt(60)

// RemainingTimeText renders a duration the way users are told about their quota:
// whole seconds below one minute, otherwise minutes rounded up.
func RemainingTimeText(seconds decimal.Decimal) string {
	if seconds.LessThan(sixty) {
		return fmt.Sprintf("%d sec", seconds.IntPart())
	}
	return fmt.Sprintf("%d min", seconds.Div(sixty).Ceil().IntPart())
}

// TruncationNotice tells the user that only a prefix of the media was transcribed.
func TruncationNotice(transcribed, required decimal.Decimal) string {
	return fmt.Sprintf("Transcription time limit reached, so only the first %s were transcribed.\n%s of transcription time is required for the whole file.",
		RemainingTimeText(transcribed), RemainingTimeText(required))
}

// PaymentPromotion is the upsell shown when quota runs out. required may be nil.
func PaymentPromotion(required *decimal.Decimal, paymentURL string) string {
	var b strings.Builder
	if required != nil {
		fmt.Fprintf(&b, "%s of transcription time is required.\n", RemainingTimeText(*required))
	}
	b.WriteString("Additional transcription time is available from 60 min.")
	if paymentURL != "" {
		b.WriteString("\n")
		b.WriteString(paymentURL)
	}
	return b.String()
}

// Compose builds the reply text: the transcript, then the truncation notice if any.
func Compose(outcome *model.TranscriptionOutcome) string {
	if outcome == nil {
		return ""
	}
	if outcome.Truncated() {
		return outcome.ResultText + "\n\n" + *outcome.TruncationNotice
	}
	return outcome.ResultText
}

// Paginate splits text into pages of at most limit runes, never cutting a rune.
// A non-positive limit uses DefaultPageLimit. Empty text yields no pages.
func Paginate(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	pages := make([]string, 0, (len(runes)+limit-1)/limit)
	for _, page := range lo.Chunk(runes, limit) {
		pages = append(pages, string(page))
	}
	return pages
}

// FormatFor picks the media format for an upload from its content type,
// falling back to the file extension.
func FormatFor(contentType, filename string) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if format, ok := contentTypeFormats[strings.ToLower(mediaType)]; ok {
			return format, nil
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if lo.Contains(AcceptedFormats, ext) {
		return ext, nil
	}

	if contentType == "" {
		contentType = filename
	}
	return "", apperrors.UnsupportedFormat(contentType)
}
