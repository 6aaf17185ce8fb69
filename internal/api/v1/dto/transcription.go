package dto

import "github.com/shopspring/decimal"

// TranscriptionForm holds the non-file fields of an upload
type TranscriptionForm struct {
	UserID string `form:"user_id" binding:"required,max=128"`
}

// TranscriptionResponse is returned once a job has finished
type TranscriptionResponse struct {
	JobID              string          `json:"job_id"`
	Text               string          `json:"text"`
	TruncationNotice   *string         `json:"truncation_notice"`
	Messages           []string        `json:"messages"`
	TranscribedSeconds decimal.Decimal `json:"transcribed_seconds"`
	RemainingSeconds   decimal.Decimal `json:"remaining_seconds"`
}
