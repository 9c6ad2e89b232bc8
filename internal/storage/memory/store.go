// Package memory is an in-memory implementation of interfaces.Store used
// in tests and local development. Accounts carry version counters so
// atomic units get real optimistic-concurrency semantics: a unit that read
// an account which was committed over in the meantime fails with
// ErrConflict instead of silently losing the update.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

type versionedAccount struct {
	account models.Account
	version uint64
}

// Store holds every collection behind one mutex. Atomic units buffer their
// writes and validate read versions at commit time.
type Store struct {
	mu        sync.Mutex
	accounts  map[string]versionedAccount
	entries   map[string]models.LedgerEntry
	clients   map[string]models.Client
	contracts map[string]models.Contract
	templates map[string]models.ContractTemplate
	products  map[string]models.Product

	forcedConflicts int // test hook: fail this many commits with ErrConflict
	failBatch       error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]versionedAccount),
		entries:   make(map[string]models.LedgerEntry),
		clients:   make(map[string]models.Client),
		contracts: make(map[string]models.Contract),
		templates: make(map[string]models.ContractTemplate),
		products:  make(map[string]models.Product),
	}
}

// FailCommits makes the next n atomic-unit commits fail with ErrConflict.
// Tests use this to exercise the coordinator's retry path.
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedConflicts = n
}

// FailNextBatch makes the next BatchDelete fail with err without applying
// any of its deletes.
func (s *Store) FailNextBatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBatch = err
}

// ─── Atomic units ───

type memTx struct {
	store *Store

	readVersions    map[string]uint64
	balanceWrites   map[string]decimal.Decimal
	bufferedEntries []models.LedgerEntry
}

func (t *memTx) Account(ctx context.Context, id string) (models.Account, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	doc, ok := t.store.accounts[id]
	if !ok {
		return models.Account{}, interfaces.ErrNotFound
	}
	t.readVersions[id] = doc.version
	account := doc.account
	if balance, ok := t.balanceWrites[id]; ok {
		// Read-your-writes within the unit.
		account.Balance = balance
	}
	return account, nil
}

func (t *memTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	t.balanceWrites[id] = balance
	return nil
}

func (t *memTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	t.bufferedEntries = append(t.bufferedEntries, entry)
	return nil
}

// RunAtomicUnit executes fn against a transaction that buffers all writes,
// then commits under the store lock. The commit validates that every
// account read by fn is still at the version it was read at; otherwise the
// unit conflicts and nothing is applied.
func (s *Store) RunAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx interfaces.AtomicTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		store:         s,
		readVersions:  make(map[string]uint64),
		balanceWrites: make(map[string]decimal.Decimal),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forcedConflicts > 0 {
		s.forcedConflicts--
		return interfaces.ErrConflict
	}
	for id, version := range tx.readVersions {
		doc, ok := s.accounts[id]
		if !ok || doc.version != version {
			return interfaces.ErrConflict
		}
	}

	for id, balance := range tx.balanceWrites {
		doc := s.accounts[id]
		doc.account.Balance = balance
		doc.version++
		s.accounts[id] = doc
	}
	for _, entry := range tx.bufferedEntries {
		s.entries[entry.ID] = entry
	}
	return nil
}

// ─── Batch writes ───

// BatchDelete removes the referenced documents all-or-nothing. Missing
// documents are ignored.
func (s *Store) BatchDelete(ctx context.Context, refs []interfaces.DocRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failBatch != nil {
		err := s.failBatch
		s.failBatch = nil
		return err
	}

	for _, ref := range refs {
		switch ref.Collection {
		case interfaces.CollectionAccounts:
			delete(s.accounts, ref.ID)
		case interfaces.CollectionEntries:
			delete(s.entries, ref.ID)
		case interfaces.CollectionClients:
			delete(s.clients, ref.ID)
		case interfaces.CollectionContracts:
			delete(s.contracts, ref.ID)
		case interfaces.CollectionTemplates:
			delete(s.templates, ref.ID)
		case interfaces.CollectionProducts:
			delete(s.products, ref.ID)
		}
	}
	return nil
}

// ─── Accounts ───

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = versionedAccount{account: account, version: 1}
	return nil
}

func (s *Store) Account(ctx context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.accounts[id]
	if !ok {
		return models.Account{}, interfaces.ErrNotFound
	}
	return doc.account, nil
}

func (s *Store) AccountsByTitle(ctx context.Context, title string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Account
	for _, doc := range s.accounts {
		if doc.account.Title == title {
			result = append(result, doc.account)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Account, 0, len(s.accounts))
	for _, doc := range s.accounts {
		result = append(result, doc.account)
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.accounts[account.ID]
	if !ok {
		return interfaces.ErrNotFound
	}
	doc.account = account
	doc.version++
	s.accounts[account.ID] = doc
	return nil
}

// ─── Entries ───

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.LedgerEntry
	for _, entry := range s.entries {
		if entry.AccountID == accountID {
			result = append(result, entry)
		}
	}
	sortEntries(result)
	return result, nil
}

func (s *Store) ListEntries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.LedgerEntry
	for _, entry := range s.entries {
		if filter.AccountID != "" && entry.AccountID != filter.AccountID {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !entry.CreatedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, entry)
	}
	sortEntries(matched)

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// sortEntries orders newest first, with ID as a tiebreaker so pagination
// is stable for entries sharing a timestamp.
func sortEntries(entries []models.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// ─── Registry ───

func (s *Store) CreateClient(ctx context.Context, client models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Client, 0, len(s.clients))
	for _, client := range s.clients {
		result = append(result, client)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateContract(ctx context.Context, contract models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[contract.ID] = contract
	return nil
}

func (s *Store) ContractsByClient(ctx context.Context, clientID string) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Contract
	for _, contract := range s.contracts {
		if contract.ClientID == clientID {
			result = append(result, contract)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListContracts(ctx context.Context) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Contract, 0, len(s.contracts))
	for _, contract := range s.contracts {
		result = append(result, contract)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateTemplate(ctx context.Context, template models.ContractTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.ID] = template
	return nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.ContractTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.ContractTemplate, 0, len(s.templates))
	for _, template := range s.templates {
		result = append(result, template)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Product, 0, len(s.products))
	for _, product := range s.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Compile-time check: Store implements the full store surface.
var _ interfaces.Store = (*Store)(nil)
