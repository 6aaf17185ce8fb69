package errors

import (
	"fmt"
	"net/http"

	apperrors "transcribot/internal/app/errors"
	"transcribot/internal/app/message"
)

// ErrorKind represents different types of API errors
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindBadRequest         ErrorKind = "bad_request"
	KindNotFound           ErrorKind = "not_found"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindInternal           ErrorKind = "internal"
	KindServiceUnavailable ErrorKind = "service_unavailable"

	KindQuotaExhausted       ErrorKind = "quota_exhausted"
	KindCorruptMedia         ErrorKind = "corrupt_media"
	KindUnsupportedFormat    ErrorKind = "unsupported_format"
	KindFileTooLarge         ErrorKind = "file_too_large"
	KindTranscriptionTimeout ErrorKind = "transcription_timeout"
	KindTranscriptionFailure ErrorKind = "transcription_failure"
)

// APIError represents a structured API error response
type APIError struct {
	Kind      ErrorKind         `json:"kind"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`

	// Set for KindQuotaExhausted.
	RequiredSeconds string `json:"required_seconds,omitempty"`
	PaymentURL      string `json:"payment_url,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for the error kind
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindCorruptMedia:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindQuotaExhausted:
		return http.StatusPaymentRequired
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindTranscriptionTimeout:
		return http.StatusGatewayTimeout
	case KindTranscriptionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error with field details
func NewValidationError(message string, fields map[string]string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: message,
		Details: fields,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Kind:    KindUnauthorized,
		Message: message,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Message: message,
	}
}

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Kind:    KindBadRequest,
		Message: message,
	}
}

// FromDomain maps an error from the transcription core onto the API error
// a client sees. paymentURL is offered when quota has run out.
func FromDomain(err error, paymentURL string) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindQuotaExhausted:
		apiErr := &APIError{
			Kind:       KindQuotaExhausted,
			Message:    message.PaymentPromotion(nil, ""),
			PaymentURL: paymentURL,
		}
		if required, ok := apperrors.RequiredSecondsOf(err); ok {
			apiErr.Message = message.PaymentPromotion(&required, "")
			apiErr.RequiredSeconds = required.String()
		}
		return apiErr
	case apperrors.KindCorruptMedia:
		return &APIError{Kind: KindCorruptMedia, Message: "The media file could not be read"}
	case apperrors.KindUnsupportedFormat:
		return &APIError{Kind: KindUnsupportedFormat, Message: err.Error()}
	case apperrors.KindFileTooLarge:
		return &APIError{Kind: KindFileTooLarge, Message: err.Error()}
	case apperrors.KindTranscriptionTimeout:
		return &APIError{Kind: KindTranscriptionTimeout, Message: "Transcription timed out, please try again"}
	case apperrors.KindTranscriptionFailure:
		return &APIError{Kind: KindTranscriptionFailure, Message: "Transcription service failed, please try again"}
	case apperrors.KindQuotaStore:
		return &APIError{Kind: KindServiceUnavailable, Message: "Quota service unavailable"}
	default:
		return NewInternalError("Internal server error")
	}
}
