package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/kassabook/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

// Collection names shared by every backend.
const (
	CollectionAccounts  = "accounts"
	CollectionEntries   = "entries"
	CollectionClients   = "clients"
	CollectionContracts = "contracts"
	CollectionTemplates = "templates"
	CollectionProducts  = "products"
)

// Sentinel errors every backend maps its own failures onto.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an atomic unit loses an
	// optimistic-concurrency race and must be re-executed from its reads.
	ErrConflict = errors.New("concurrent modification conflict")
)

// AtomicTx exposes the operations available inside one atomic unit.
// Reads are fresh (never served from caller-provided state) and writes are
// invisible to other readers until the unit commits.
type AtomicTx interface {
	Account(ctx context.Context, id string) (models.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	InsertEntry(ctx context.Context, entry models.LedgerEntry) error
}

// AtomicRunner executes fn as a single all-or-nothing unit with isolation
// equivalent to snapshot isolation. A conflicting concurrent commit is
// reported as ErrConflict; the caller re-executes fn from scratch.
type AtomicRunner interface {
	RunAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx AtomicTx) error) error
}

// DocRef identifies a single document for batch operations.
type DocRef struct {
	Collection string
	ID         string
}

// BatchWriter deletes a set of documents all-or-nothing, without read
// dependencies. Missing documents are ignored, matching document-store
// batch semantics.
type BatchWriter interface {
	BatchDelete(ctx context.Context, refs []DocRef) error
}

// EntryFilter narrows a ledger feed query.
type EntryFilter struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// AccountStore holds account documents keyed by id.
type AccountStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	Account(ctx context.Context, id string) (models.Account, error)
	AccountsByTitle(ctx context.Context, title string) ([]models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccount(ctx context.Context, account models.Account) error
}

// LedgerStore is the append-only collection of ledger entries.
type LedgerStore interface {
	EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, int64, error)
}

// RegistryStore holds the non-ledger business documents.
type RegistryStore interface {
	CreateClient(ctx context.Context, client models.Client) error
	ListClients(ctx context.Context) ([]models.Client, error)

	CreateContract(ctx context.Context, contract models.Contract) error
	ContractsByClient(ctx context.Context, clientID string) ([]models.Contract, error)
	ListContracts(ctx context.Context) ([]models.Contract, error)

	CreateTemplate(ctx context.Context, template models.ContractTemplate) error
	ListTemplates(ctx context.Context) ([]models.ContractTemplate, error)

	CreateProduct(ctx context.Context, product models.Product) error
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Store is the full surface a backend must provide.
type Store interface {
	AtomicRunner
	BatchWriter
	AccountStore
	LedgerStore
	RegistryStore
}
