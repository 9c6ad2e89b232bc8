package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer represents a completed movement of funds between two accounts.
// It is the intent the coordinator executed; the durable record is the pair
// of ledger entries it produced.
type Transfer struct {
	ID          string          `json:"id"`
	SourceID    string          `json:"source_id"`
	TargetID    string          `json:"target_id"`
	SourceTitle string          `json:"source_title"`
	TargetTitle string          `json:"target_title"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
