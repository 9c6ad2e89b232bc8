package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a business counterparty tracked in the dashboard.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Contract links a client to an agreed amount, optionally based on a template.
type Contract struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"client_id"`
	TemplateID string          `json:"template_id,omitempty"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ContractTemplate is a reusable contract body.
type ContractTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog item with a unit price.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Unit      string          `json:"unit"`
	CreatedAt time.Time       `json:"created_at"`
}
