package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics the service publishes to.
const (
	TopicTransferCompleted = "transfer_completed"
	TopicAccountDeleted    = "account_deleted"
)

// TransferCompleted is emitted after a transfer commits.
type TransferCompleted struct {
	TransferID  string          `json:"transfer_id"`
	SourceID    string          `json:"source_id"`
	TargetID    string          `json:"target_id"`
	SourceTitle string          `json:"source_title"`
	TargetTitle string          `json:"target_title"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// AccountDeleted is emitted after an account (and, when cascading, its
// same-titled siblings and their entries) has been removed.
type AccountDeleted struct {
	AccountID       string    `json:"account_id"`
	Title           string    `json:"title"`
	Cascade         bool      `json:"cascade"`
	AccountsRemoved int       `json:"accounts_removed"`
	EntriesRemoved  int       `json:"entries_removed"`
	OccurredAt      time.Time `json:"occurred_at"`
}
