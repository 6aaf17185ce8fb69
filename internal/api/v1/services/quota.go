package services

import (
	"context"

	"github.com/shopspring/decimal"
	"transcribot/internal/api/errors"
	"transcribot/internal/api/v1/dto"
	"transcribot/internal/app/message"
)

// Ledger is the part of the quota ledger the API exposes.
type Ledger interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID string, seconds decimal.Decimal) (decimal.Decimal, error)
}

// QuotaServiceImpl implements QuotaService
type QuotaServiceImpl struct {
	ledger Ledger
}

// NewQuotaService creates a new quota service
func NewQuotaService(ledger Ledger) QuotaService {
	return &QuotaServiceImpl{ledger: ledger}
}

// GetQuota returns the user's balance; unknown users see the default allotment
func (s *QuotaServiceImpl) GetQuota(ctx context.Context, userID string) (*dto.QuotaResponse, error) {
	remaining, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, errors.FromDomain(err, "")
	}
	return quotaResponse(userID, remaining), nil
}

// Credit adds purchased seconds
func (s *QuotaServiceImpl) Credit(ctx context.Context, userID string, req *dto.CreditRequest) (*dto.QuotaResponse, error) {
	remaining, err := s.ledger.Credit(ctx, userID, decimal.NewFromFloat(req.Seconds))
	if err != nil {
		return nil, errors.FromDomain(err, "")
	}
	return quotaResponse(userID, remaining), nil
}

func quotaResponse(userID string, remaining decimal.Decimal) *dto.QuotaResponse {
	return &dto.QuotaResponse{
		UserID:           userID,
		RemainingSeconds: remaining,
		RemainingText:    message.RemainingTimeText(remaining),
	}
}
