package errors

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies every failure the transcription core can surface to a caller.
type Kind int

const (
	KindUnknown Kind = iota
	// Media could not be opened, probed, or cut.
	KindCorruptMedia
	// The user has less than one second of transcription time left.
	KindQuotaExhausted
	// A chunk did not come back from the remote service before its deadline.
	KindTranscriptionTimeout
	// The remote service returned an error or an unparseable response.
	KindTranscriptionFailure
	// Caller-side rejections that happen before a job is created.
	KindUnsupportedFormat
	KindFileTooLarge
	// The quota store could not be read or written.
	KindQuotaStore
)

func (k Kind) String() string {
	switch k {
	case KindCorruptMedia:
		return "corrupt_media"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindTranscriptionTimeout:
		return "transcription_timeout"
	case KindTranscriptionFailure:
		return "transcription_failure"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindFileTooLarge:
		return "file_too_large"
	case KindQuotaStore:
		return "quota_store"
	default:
		return "unknown"
	}
}

// Error represents a classified error
type Error struct {
	kind    Kind
	message string
	cause   error

	// RequiredSeconds is set for KindQuotaExhausted.
	RequiredSeconds decimal.Decimal
}

// New creates a new error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf creates a new formatted error
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a kind and additional context
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		kind:    kind,
		message: message,
		cause:   err,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
		cause:   err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the classification of the error
func (e *Error) Kind() Kind {
	return e.kind
}

// Is checks if the error matches target
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.message == t.message
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RequiredSecondsOf returns the amount of time a quota-exhausted job needed.
func RequiredSecondsOf(err error) (decimal.Decimal, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.kind == KindQuotaExhausted {
		return e.RequiredSeconds, true
	}
	return decimal.Zero, false
}

// Helper functions for the taxonomy

// CorruptMedia reports media that cannot be probed or cut.
func CorruptMedia(path string, cause error) error {
	return Wrapf(cause, KindCorruptMedia, "media %s is unreadable", path)
}

// QuotaExhausted reports that the user needs requiredSeconds more time.
func QuotaExhausted(requiredSeconds decimal.Decimal) error {
	return &Error{
		kind:            KindQuotaExhausted,
		message:         fmt.Sprintf("quota exhausted: %s seconds required", requiredSeconds.StringFixed(3)),
		RequiredSeconds: requiredSeconds,
	}
}

// TranscriptionTimeout reports a chunk that exceeded its deadline.
func TranscriptionTimeout(chunkIndex int, timeout time.Duration) error {
	return Newf(KindTranscriptionTimeout, "chunk %d timeout after %s", chunkIndex, timeout)
}

// TranscriptionFailure reports a chunk whose remote call failed.
func TranscriptionFailure(chunkIndex int, cause error) error {
	if cause == nil {
		return Newf(KindTranscriptionFailure, "chunk %d transcription failed", chunkIndex)
	}
	return Wrapf(cause, KindTranscriptionFailure, "chunk %d transcription failed", chunkIndex)
}

// UnsupportedFormat reports media whose format is not accepted.
func UnsupportedFormat(contentType string) error {
	return Newf(KindUnsupportedFormat, "unsupported media type %q", contentType)
}

// FileTooLarge reports an upload over the size limit.
func FileTooLarge(limitMB int) error {
	return Newf(KindFileTooLarge, "file exceeds %d MB", limitMB)
}

// QuotaStore reports a failing quota store operation.
func QuotaStore(operation string, cause error) error {
	return Wrapf(cause, KindQuotaStore, "quota store %s failed", operation)
}
