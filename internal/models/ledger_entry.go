package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry. It is redundant with the amount's
// sign and must stay consistent with it.
type EntryKind string

const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"
)

// LedgerEntry is a single signed balance-affecting record for an account.
// Entries are immutable once created; they are only ever removed by a
// cascading account deletion.
type LedgerEntry struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	FromTitle   string          `json:"from_title"`
	ToTitle     string          `json:"to_title"`
	Amount      decimal.Decimal `json:"amount"` // negative = debit, positive = credit
	Kind        EntryKind       `json:"kind"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the kind/sign consistency invariant.
func (e LedgerEntry) Validate() error {
	switch e.Kind {
	case KindExpense:
		if e.Amount.Sign() >= 0 {
			return fmt.Errorf("expense entry %s must have a negative amount, got %s", e.ID, e.Amount)
		}
	case KindIncome:
		if e.Amount.Sign() <= 0 {
			return fmt.Errorf("income entry %s must have a positive amount, got %s", e.ID, e.Amount)
		}
	default:
		return fmt.Errorf("entry %s has unknown kind %q", e.ID, e.Kind)
	}
	return nil
}
