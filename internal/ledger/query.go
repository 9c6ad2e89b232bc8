package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

// CreateAccount creates a new account with a zero starting balance.
func (s *Service) CreateAccount(ctx context.Context, title string) (models.Account, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Account{}, ErrInvalidTitle
	}
	now := s.now().UTC()
	account := models.Account{
		ID:        uuid.New().String(),
		Title:     title,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// RenameAccount updates an account's title. Balances are never touched
// here; those go through Transfer or AdjustBalance.
func (s *Service) RenameAccount(ctx context.Context, id, title string) (models.Account, error) {
	account, err := s.store.Account(ctx, id)
	if err != nil {
		return models.Account{}, mapNotFound(err, id)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Account{}, ErrInvalidTitle
	}
	account.Title = title
	account.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// Account returns a single account.
func (s *Service) Account(ctx context.Context, id string) (models.Account, error) {
	account, err := s.store.Account(ctx, id)
	if err != nil {
		return models.Account{}, mapNotFound(err, id)
	}
	return account, nil
}

// ListAccounts returns all accounts ordered by title.
func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Title < accounts[j].Title })
	return accounts, nil
}

// Entries returns a page of the ledger feed plus the total match count.
func (s *Service) Entries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, int64, error) {
	return s.store.ListEntries(ctx, filter)
}

// DaySummary aggregates one day of ledger activity.
type DaySummary struct {
	Date    string          `json:"date"` // YYYY-MM-DD
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// DailyReport groups entries in [from, to) by calendar day.
func (s *Service) DailyReport(ctx context.Context, from, to time.Time) ([]DaySummary, error) {
	entries, _, err := s.store.ListEntries(ctx, interfaces.EntryFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DaySummary)
	for _, entry := range entries {
		key := entry.CreatedAt.UTC().Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			day = &DaySummary{Date: key}
			byDay[key] = day
		}
		if entry.Kind == models.KindIncome {
			day.Income = day.Income.Add(entry.Amount)
		} else {
			day.Expense = day.Expense.Add(entry.Amount.Abs())
		}
	}

	report := make([]DaySummary, 0, len(byDay))
	for _, day := range byDay {
		day.Net = day.Income.Sub(day.Expense)
		report = append(report, *day)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Date < report[j].Date })
	return report, nil
}

// Stats is the dashboard header summary.
type Stats struct {
	TotalBalance decimal.Decimal `json:"total_balance"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Accounts     int             `json:"accounts"`
}

// Stats sums balances across all accounts and income/expense across all
// entries.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	entries, _, err := s.store.ListEntries(ctx, interfaces.EntryFilter{})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Accounts: len(accounts)}
	for _, account := range accounts {
		stats.TotalBalance = stats.TotalBalance.Add(account.Balance)
	}
	for _, entry := range entries {
		if entry.Kind == models.KindIncome {
			stats.TotalIncome = stats.TotalIncome.Add(entry.Amount)
		} else {
			stats.TotalExpense = stats.TotalExpense.Add(entry.Amount.Abs())
		}
	}
	return stats, nil
}
