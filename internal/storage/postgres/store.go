// Package postgres implements interfaces.Store on PostgreSQL. Atomic
// units run as SERIALIZABLE transactions; serialization failures and
// deadlocks are mapped to interfaces.ErrConflict so the coordinator can
// re-execute them.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

// Store wraps a *sql.DB opened with the lib/pq driver.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			balance    NUMERIC(20,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_title ON accounts(title)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			from_title  TEXT NOT NULL DEFAULT '',
			to_title    TEXT NOT NULL DEFAULT '',
			amount      NUMERIC(20,4) NOT NULL,
			kind        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			note       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id          TEXT PRIMARY KEY,
			client_id   TEXT NOT NULL,
			template_id TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL,
			amount      NUMERIC(20,4) NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_client ON contracts(client_id)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			price      NUMERIC(20,4) NOT NULL DEFAULT 0,
			unit       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// tableFor maps a collection name to its table, guarding BatchDelete
// against arbitrary identifiers.
func tableFor(collection string) (string, error) {
	switch collection {
	case interfaces.CollectionAccounts, interfaces.CollectionEntries,
		interfaces.CollectionClients, interfaces.CollectionContracts,
		interfaces.CollectionTemplates, interfaces.CollectionProducts:
		return collection, nil
	default:
		return "", fmt.Errorf("unknown collection %q", collection)
	}
}

// isConflict reports whether err is a serialization failure (40001) or
// deadlock (40P01).
func isConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// ─── Atomic units ───

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Account(ctx context.Context, id string) (models.Account, error) {
	var account models.Account
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, title, balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&account.ID, &account.Title, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, interfaces.ErrNotFound
	}
	return account, err
}

func (t *pgTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1
	`, id, balance)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO entries (id, account_id, from_title, to_title, amount, kind, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.AccountID, entry.FromTitle, entry.ToTitle, entry.Amount, entry.Kind, entry.Description, entry.CreatedAt)
	return err
}

// RunAtomicUnit executes fn inside a SERIALIZABLE transaction.
func (s *Store) RunAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx interfaces.AtomicTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		tx.Rollback()
		if isConflict(err) {
			return interfaces.ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if isConflict(err) {
			return interfaces.ErrConflict
		}
		return err
	}
	return nil
}

// BatchDelete removes all referenced rows in one transaction.
func (s *Store) BatchDelete(ctx context.Context, refs []interfaces.DocRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		table, err := tableFor(ref.Collection)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, ref.ID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ─── Accounts ───

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, title, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID, account.Title, account.Balance, account.CreatedAt, account.UpdatedAt)
	return err
}

func (s *Store) Account(ctx context.Context, id string) (models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&account.ID, &account.Title, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, interfaces.ErrNotFound
	}
	return account, err
}

func (s *Store) AccountsByTitle(ctx context.Context, title string) ([]models.Account, error) {
	return s.queryAccounts(ctx, `
		SELECT id, title, balance, created_at, updated_at
		FROM accounts WHERE title = $1 ORDER BY id
	`, title)
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.queryAccounts(ctx, `
		SELECT id, title, balance, created_at, updated_at
		FROM accounts ORDER BY title, id
	`)
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Title, &account.Balance, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, account models.Account) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET title = $2, balance = $3, updated_at = $4 WHERE id = $1
	`, account.ID, account.Title, account.Balance, account.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// ─── Entries ───

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, account_id, from_title, to_title, amount, kind, description, created_at
		FROM entries WHERE account_id = $1 ORDER BY created_at DESC, id
	`, accountID)
}

func (s *Store) ListEntries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, int64, error) {
	where := `WHERE 1=1`
	args := []any{}
	next := 1
	if filter.AccountID != "" {
		where += fmt.Sprintf(` AND account_id = $%d`, next)
		args = append(args, filter.AccountID)
		next++
	}
	if !filter.From.IsZero() {
		where += fmt.Sprintf(` AND created_at >= $%d`, next)
		args = append(args, filter.From)
		next++
	}
	if !filter.To.IsZero() {
		where += fmt.Sprintf(` AND created_at < $%d`, next)
		args = append(args, filter.To)
		next++
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, account_id, from_title, to_title, amount, kind, description, created_at
		FROM entries ` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, next)
		args = append(args, filter.Limit)
		next++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, next)
		args = append(args, filter.Offset)
	}

	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.FromTitle, &entry.ToTitle,
			&entry.Amount, &entry.Kind, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ─── Registry ───

func (s *Store) CreateClient(ctx context.Context, client models.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, phone, email, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, client.ID, client.Name, client.Phone, client.Email, client.Note, client.CreatedAt)
	return err
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, note, created_at FROM clients ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var client models.Client
		if err := rows.Scan(&client.ID, &client.Name, &client.Phone, &client.Email, &client.Note, &client.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (s *Store) CreateContract(ctx context.Context, contract models.Contract) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, client_id, template_id, title, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, contract.ID, contract.ClientID, contract.TemplateID, contract.Title, contract.Amount, contract.CreatedAt)
	return err
}

func (s *Store) ContractsByClient(ctx context.Context, clientID string) ([]models.Contract, error) {
	return s.queryContracts(ctx, `
		SELECT id, client_id, template_id, title, amount, created_at
		FROM contracts WHERE client_id = $1 ORDER BY id
	`, clientID)
}

func (s *Store) ListContracts(ctx context.Context) ([]models.Contract, error) {
	return s.queryContracts(ctx, `
		SELECT id, client_id, template_id, title, amount, created_at
		FROM contracts ORDER BY id
	`)
}

func (s *Store) queryContracts(ctx context.Context, query string, args ...any) ([]models.Contract, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		var contract models.Contract
		if err := rows.Scan(&contract.ID, &contract.ClientID, &contract.TemplateID,
			&contract.Title, &contract.Amount, &contract.CreatedAt); err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

func (s *Store) CreateTemplate(ctx context.Context, template models.ContractTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, body, created_at) VALUES ($1, $2, $3, $4)
	`, template.ID, template.Name, template.Body, template.CreatedAt)
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.ContractTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, body, created_at FROM templates ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.ContractTemplate
	for rows.Next() {
		var template models.ContractTemplate
		if err := rows.Scan(&template.ID, &template.Name, &template.Body, &template.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product models.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, unit, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, product.ID, product.Name, product.Price, product.Unit, product.CreatedAt)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, unit, created_at FROM products ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.Unit, &product.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// Compile-time check: Store implements the full store surface.
var _ interfaces.Store = (*Store)(nil)
