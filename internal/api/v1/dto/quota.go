package dto

import "github.com/shopspring/decimal"

// CreditRequest adds purchased seconds to a user's quota
type CreditRequest struct {
	Seconds float64 `json:"seconds" binding:"required,gt=0"`
}

// QuotaResponse reports a user's balance
type QuotaResponse struct {
	UserID           string          `json:"user_id"`
	RemainingSeconds decimal.Decimal `json:"remaining_seconds"`
	RemainingText    string          `json:"remaining_text"`
}
