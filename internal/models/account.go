package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a named balance bucket (a budget category in the UI).
// Balance is an exact decimal in a single fixed currency; formatting into
// display text happens at the API boundary, never here.
type Account struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
