package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
	"github.com/kassabook/ledger-service/internal/models/events"
	"github.com/kassabook/ledger-service/internal/storage/memory"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *capturePublisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestService(t *testing.T) (*Service, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturePublisher{}
	svc := NewService(store, publisher, zap.NewNop())
	return svc, store, publisher
}

func createAccount(t *testing.T, svc *Service, title string, balance int64) models.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), title)
	require.NoError(t, err)
	if balance != 0 {
		require.NoError(t, svc.AdjustBalance(context.Background(), account.ID, decimal.NewFromInt(balance)))
		account.Balance = decimal.NewFromInt(balance)
	}
	return account
}

func entriesFor(t *testing.T, store *memory.Store, accountID string) []models.LedgerEntry {
	t.Helper()
	entries, err := store.EntriesByAccount(context.Background(), accountID)
	require.NoError(t, err)
	return entries
}

func TestTransfer_MovesFundsAndWritesEntryPair(t *testing.T) {
	svc, store, publisher := newTestService(t)
	source := createAccount(t, svc, "Rent fund", 5000)
	target := createAccount(t, svc, "Operations", 1000)

	transfer, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(2000), "rent")
	require.NoError(t, err)

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	gotTarget, err := svc.Account(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Equal(decimal.NewFromInt(3000)), "source balance = %s", gotSource.Balance)
	assert.True(t, gotTarget.Balance.Equal(decimal.NewFromInt(3000)), "target balance = %s", gotTarget.Balance)

	sourceEntries := entriesFor(t, store, source.ID)
	targetEntries := entriesFor(t, store, target.ID)
	require.Len(t, sourceEntries, 1)
	require.Len(t, targetEntries, 1)

	debit, credit := sourceEntries[0], targetEntries[0]
	assert.True(t, debit.Amount.Equal(decimal.NewFromInt(-2000)))
	assert.Equal(t, models.KindExpense, debit.Kind)
	assert.True(t, credit.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, models.KindIncome, credit.Kind)

	// The pair shares description, logical timestamp and counterparty titles.
	assert.Equal(t, "rent", debit.Description)
	assert.Equal(t, "rent", credit.Description)
	assert.True(t, debit.CreatedAt.Equal(credit.CreatedAt))
	assert.Equal(t, "Rent fund", debit.FromTitle)
	assert.Equal(t, "Operations", debit.ToTitle)
	assert.Equal(t, "Rent fund", credit.FromTitle)
	assert.Equal(t, "Operations", credit.ToTitle)

	assert.True(t, debit.Amount.Equal(credit.Amount.Neg()), "amounts must be exact negations")

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, events.TopicTransferCompleted, publisher.topics[0])
	completed, ok := publisher.events[0].(events.TransferCompleted)
	require.True(t, ok)
	assert.Equal(t, transfer.ID, completed.TransferID)
}

func TestTransfer_Conservation(t *testing.T) {
	svc, _, _ := newTestService(t)
	source := createAccount(t, svc, "A", 700)
	target := createAccount(t, svc, "B", 300)
	before := decimal.NewFromInt(1000)

	amounts := []int64{1, 250, 13, 100}
	for _, n := range amounts {
		_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(n), "shuffle")
		require.NoError(t, err)
	}

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	gotTarget, err := svc.Account(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Add(gotTarget.Balance).Equal(before),
		"funds not conserved: %s + %s != %s", gotSource.Balance, gotTarget.Balance, before)
}

func TestTransfer_InsufficientFundsLeavesStoreUntouched(t *testing.T) {
	svc, store, publisher := newTestService(t)
	source := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 50)

	_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(500), "too much")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	gotTarget, err := svc.Account(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, gotTarget.Balance.Equal(decimal.NewFromInt(50)))

	assert.Empty(t, entriesFor(t, store, source.ID))
	assert.Empty(t, entriesFor(t, store, target.ID))
	assert.Empty(t, publisher.topics, "no event for a failed transfer")
}

func TestTransfer_ExactBalanceSucceeds(t *testing.T) {
	svc, _, _ := newTestService(t)
	source := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 0)

	_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(100), "all in")
	require.NoError(t, err)

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.IsZero())
}

func TestTransfer_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	source := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 0)

	_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.Zero, "zero")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(-5), "negative")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Transfer(context.Background(), source.ID, source.ID, decimal.NewFromInt(5), "self")
	assert.ErrorIs(t, err, ErrSameAccount)
}

func TestTransfer_MissingAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	source := createAccount(t, svc, "A", 100)

	_, err := svc.Transfer(context.Background(), source.ID, "no-such-id", decimal.NewFromInt(10), "gone")
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Transfer(context.Background(), "no-such-id", source.ID, decimal.NewFromInt(10), "gone")
	require.ErrorIs(t, err, ErrAccountNotFound)

	assert.Empty(t, entriesFor(t, store, source.ID))
}

func TestTransfer_RetriesConflictOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	source := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 0)

	// First commit conflicts; the retry must succeed and apply exactly once.
	store.FailCommits(1)
	_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(40), "retry me")
	require.NoError(t, err)

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	gotTarget, err := svc.Account(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Equal(decimal.NewFromInt(60)))
	assert.True(t, gotTarget.Balance.Equal(decimal.NewFromInt(40)))

	assert.Len(t, entriesFor(t, store, source.ID), 1, "conflicted attempt must leave no entries")
	assert.Len(t, entriesFor(t, store, target.ID), 1)
}

func TestTransfer_ConflictBudgetExhausted(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, nil, zap.NewNop(), WithMaxAttempts(3))

	source, err := svc.CreateAccount(context.Background(), "A")
	require.NoError(t, err)
	target, err := svc.CreateAccount(context.Background(), "B")
	require.NoError(t, err)
	require.NoError(t, svc.AdjustBalance(context.Background(), source.ID, decimal.NewFromInt(100)))

	store.FailCommits(3)
	_, err = svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(10), "doomed")
	require.ErrorIs(t, err, ErrTransferFailed)

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Equal(decimal.NewFromInt(100)), "exhausted retries must not write")

	entries, err := store.EntriesByAccount(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransfer_ConcurrentTransfersConserveFunds(t *testing.T) {
	svc, store, _ := newTestService(t)
	source := createAccount(t, svc, "A", 1000)
	target := createAccount(t, svc, "B", 1000)

	const workers = 20
	var wg sync.WaitGroup
	succeeded := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half push one way, half the other.
			src, dst := source.ID, target.ID
			if i%2 == 0 {
				src, dst = dst, src
			}
			if _, err := svc.Transfer(context.Background(), src, dst, decimal.NewFromInt(50), "race"); err == nil {
				succeeded[i] = true
			}
		}(i)
	}
	wg.Wait()

	gotSource, err := svc.Account(context.Background(), source.ID)
	require.NoError(t, err)
	gotTarget, err := svc.Account(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Add(gotTarget.Balance).Equal(decimal.NewFromInt(2000)),
		"concurrent transfers lost funds: %s + %s", gotSource.Balance, gotTarget.Balance)

	// Every successful transfer produced exactly its entry pair.
	wins := 0
	for _, ok := range succeeded {
		if ok {
			wins++
		}
	}
	total := len(entriesFor(t, store, source.ID)) + len(entriesFor(t, store, target.ID))
	assert.Equal(t, wins*2, total)
}

func TestAdjustBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	account := createAccount(t, svc, "A", 0)

	require.NoError(t, svc.AdjustBalance(context.Background(), account.ID, decimal.NewFromInt(777)))
	got, err := svc.Account(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(777)))

	err = svc.AdjustBalance(context.Background(), "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDeleteAccount_NoCascadeLeavesEntries(t *testing.T) {
	svc, store, _ := newTestService(t)
	source := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 0)
	_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(10), "history")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), source.ID, source.Title, false))

	_, err = svc.Account(context.Background(), source.ID)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	// Entries referencing the deleted account deliberately remain.
	assert.Len(t, entriesFor(t, store, source.ID), 1)
	assert.Len(t, entriesFor(t, store, target.ID), 1)
}

func TestDeleteAccount_CascadeRemovesTitleGroupAndEntries(t *testing.T) {
	svc, store, _ := newTestService(t)
	first := createAccount(t, svc, "Shared", 100)
	second := createAccount(t, svc, "Shared", 50)
	other := createAccount(t, svc, "Other", 0)

	_, err := svc.Transfer(context.Background(), first.ID, other.ID, decimal.NewFromInt(10), "one")
	require.NoError(t, err)
	_, err = svc.Transfer(context.Background(), second.ID, other.ID, decimal.NewFromInt(5), "two")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), first.ID, "Shared", true))

	accounts, err := store.AccountsByTitle(context.Background(), "Shared")
	require.NoError(t, err)
	assert.Empty(t, accounts, "no account titled Shared may remain")
	assert.Empty(t, entriesFor(t, store, first.ID))
	assert.Empty(t, entriesFor(t, store, second.ID))

	// The unrelated account and its entries survive.
	_, err = svc.Account(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Len(t, entriesFor(t, store, other.ID), 2)
}

func TestDeleteAccount_BatchFailureIsAtomic(t *testing.T) {
	svc, store, _ := newTestService(t)
	account := createAccount(t, svc, "A", 100)
	target := createAccount(t, svc, "B", 0)
	_, err := svc.Transfer(context.Background(), account.ID, target.ID, decimal.NewFromInt(10), "keep")
	require.NoError(t, err)

	store.FailNextBatch(assert.AnError)
	err = svc.DeleteAccount(context.Background(), account.ID, "A", true)
	require.ErrorIs(t, err, ErrDeleteFailed)

	// Nothing was applied.
	_, err = svc.Account(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, entriesFor(t, store, account.ID), 1)
}

func TestCreateAccount_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateAccount(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidTitle)
}

func TestRenameAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	account := createAccount(t, svc, "Old", 0)

	renamed, err := svc.RenameAccount(context.Background(), account.ID, "New")
	require.NoError(t, err)
	assert.Equal(t, "New", renamed.Title)

	_, err = svc.RenameAccount(context.Background(), account.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = svc.RenameAccount(context.Background(), "missing", "X")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDailyReportAndStats(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := memory.NewStore()
	svc := NewService(store, nil, zap.NewNop(), WithClock(func() time.Time { return clock }))

	source, err := svc.CreateAccount(context.Background(), "A")
	require.NoError(t, err)
	target, err := svc.CreateAccount(context.Background(), "B")
	require.NoError(t, err)
	require.NoError(t, svc.AdjustBalance(context.Background(), source.ID, decimal.NewFromInt(1000)))

	_, err = svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(100), "day one")
	require.NoError(t, err)

	clock = base.AddDate(0, 0, 1)
	_, err = svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(50), "day two")
	require.NoError(t, err)

	report, err := svc.DailyReport(context.Background(), base.AddDate(0, 0, -1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, "2026-08-01", report[0].Date)
	assert.True(t, report[0].Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, report[0].Expense.Equal(decimal.NewFromInt(100)))
	assert.True(t, report[0].Net.IsZero())
	assert.Equal(t, "2026-08-02", report[1].Date)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Accounts)
	assert.True(t, stats.TotalBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, stats.TotalIncome.Equal(decimal.NewFromInt(150)))
	assert.True(t, stats.TotalExpense.Equal(decimal.NewFromInt(150)))
}

func TestEntriesFeedPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	source := createAccount(t, svc, "A", 1000)
	target := createAccount(t, svc, "B", 0)

	for i := 0; i < 5; i++ {
		_, err := svc.Transfer(context.Background(), source.ID, target.ID, decimal.NewFromInt(10), "feed")
		require.NoError(t, err)
	}

	entries, total, err := svc.Entries(context.Background(), interfaces.EntryFilter{Limit: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
	assert.Len(t, entries, 4)

	entries, total, err = svc.Entries(context.Background(), interfaces.EntryFilter{AccountID: source.ID, Limit: 100})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, entries, 5)
	for _, entry := range entries {
		assert.Equal(t, models.KindExpense, entry.Kind)
	}
}
