package services

import (
	"context"

	"transcribot/internal/api/v1/dto"
)

// TranscriptionService runs one job for a staged upload
type TranscriptionService interface {
	Transcribe(ctx context.Context, userID, stagedPath, format string) (*dto.TranscriptionResponse, error)
}

// QuotaService defines the interface for quota operations
type QuotaService interface {
	GetQuota(ctx context.Context, userID string) (*dto.QuotaResponse, error)
	Credit(ctx context.Context, userID string, req *dto.CreditRequest) (*dto.QuotaResponse, error)
}
