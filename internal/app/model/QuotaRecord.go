package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotaRecord is the persisted remaining transcription time of one user.
type QuotaRecord struct {
	UserID           string          `json:"user_id" db:"user_id"`
	RemainingSeconds decimal.Decimal `json:"remaining_seconds" db:"remaining_sec"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
