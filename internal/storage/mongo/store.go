// Package mongo implements interfaces.Store on MongoDB. Atomic units run
// as multi-document transactions on a session with snapshot read concern;
// transient transaction errors are mapped to interfaces.ErrConflict.
// Amounts are persisted as exact decimal strings.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

// Config holds connection settings.
type Config struct {
	URI                    string
	Database               string
	ServerSelectionTimeout time.Duration
}

// Store wraps a connected client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and verifies the connection. Transactions
// require a replica set or mongos deployment.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri cannot be empty")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name cannot be empty")
	}
	timeout := cfg.ServerSelectionTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the secondary indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(interfaces.CollectionAccounts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create account index: %w", err)
	}
	_, err = s.db.Collection(interfaces.CollectionEntries).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create entry indexes: %w", err)
	}
	_, err = s.db.Collection(interfaces.CollectionContracts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "client_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create contract index: %w", err)
	}
	return nil
}

// isConflict reports whether err carries a transient transaction label.
func isConflict(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

// ─── Document shapes ───
// Amounts are stored as strings so no precision is lost in BSON.

type accountDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Balance   string    `bson:"balance"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toAccountDoc(a models.Account) accountDoc {
	return accountDoc{ID: a.ID, Title: a.Title, Balance: a.Balance.String(), CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func (d accountDoc) model() (models.Account, error) {
	balance, err := decimal.NewFromString(d.Balance)
	if err != nil {
		return models.Account{}, fmt.Errorf("account %s has malformed balance %q: %w", d.ID, d.Balance, err)
	}
	return models.Account{ID: d.ID, Title: d.Title, Balance: balance, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}, nil
}

type entryDoc struct {
	ID          string    `bson:"_id"`
	AccountID   string    `bson:"account_id"`
	FromTitle   string    `bson:"from_title"`
	ToTitle     string    `bson:"to_title"`
	Amount      string    `bson:"amount"`
	Kind        string    `bson:"kind"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toEntryDoc(e models.LedgerEntry) entryDoc {
	return entryDoc{
		ID:          e.ID,
		AccountID:   e.AccountID,
		FromTitle:   e.FromTitle,
		ToTitle:     e.ToTitle,
		Amount:      e.Amount.String(),
		Kind:        string(e.Kind),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func (d entryDoc) model() (models.LedgerEntry, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("entry %s has malformed amount %q: %w", d.ID, d.Amount, err)
	}
	return models.LedgerEntry{
		ID:          d.ID,
		AccountID:   d.AccountID,
		FromTitle:   d.FromTitle,
		ToTitle:     d.ToTitle,
		Amount:      amount,
		Kind:        models.EntryKind(d.Kind),
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}, nil
}

type contractDoc struct {
	ID         string    `bson:"_id"`
	ClientID   string    `bson:"client_id"`
	TemplateID string    `bson:"template_id"`
	Title      string    `bson:"title"`
	Amount     string    `bson:"amount"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d contractDoc) model() (models.Contract, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return models.Contract{}, fmt.Errorf("contract %s has malformed amount %q: %w", d.ID, d.Amount, err)
	}
	return models.Contract{ID: d.ID, ClientID: d.ClientID, TemplateID: d.TemplateID, Title: d.Title, Amount: amount, CreatedAt: d.CreatedAt}, nil
}

type clientDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Phone     string    `bson:"phone"`
	Email     string    `bson:"email"`
	Note      string    `bson:"note"`
	CreatedAt time.Time `bson:"created_at"`
}

type templateDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"created_at"`
}

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Price     string    `bson:"price"`
	Unit      string    `bson:"unit"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d productDoc) model() (models.Product, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("product %s has malformed price %q: %w", d.ID, d.Price, err)
	}
	return models.Product{ID: d.ID, Name: d.Name, Price: price, Unit: d.Unit, CreatedAt: d.CreatedAt}, nil
}

// ─── Atomic units ───

type mongoTx struct {
	db *mongo.Database
}

func (t *mongoTx) Account(ctx context.Context, id string) (models.Account, error) {
	var doc accountDoc
	err := t.db.Collection(interfaces.CollectionAccounts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return doc.model()
}

func (t *mongoTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	result, err := t.db.Collection(interfaces.CollectionAccounts).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"balance": balance.String(), "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (t *mongoTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := t.db.Collection(interfaces.CollectionEntries).InsertOne(ctx, toEntryDoc(entry))
	return err
}

// RunAtomicUnit executes fn inside a session transaction. The driver's
// WithTransaction already retries transient failures internally with a
// deadline; whatever still escapes is surfaced as ErrConflict so the
// coordinator applies its own bounded retry.
func (s *Store) RunAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx interfaces.AtomicTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &mongoTx{db: s.db})
	}, txnOpts)
	if err != nil {
		if isConflict(err) {
			return interfaces.ErrConflict
		}
		return err
	}
	return nil
}

// BatchDelete removes the referenced documents inside one transaction so
// the batch commits all-or-nothing. Missing documents are ignored.
func (s *Store) BatchDelete(ctx context.Context, refs []interfaces.DocRef) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, ref := range refs {
			if _, err := s.db.Collection(ref.Collection).DeleteOne(sc, bson.M{"_id": ref.ID}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// ─── Accounts ───

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	_, err := s.db.Collection(interfaces.CollectionAccounts).InsertOne(ctx, toAccountDoc(account))
	return err
}

func (s *Store) Account(ctx context.Context, id string) (models.Account, error) {
	return (&mongoTx{db: s.db}).Account(ctx, id)
}

func (s *Store) AccountsByTitle(ctx context.Context, title string) ([]models.Account, error) {
	return s.findAccounts(ctx, bson.M{"title": title})
}

func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.findAccounts(ctx, bson.M{})
}

func (s *Store) findAccounts(ctx context.Context, filter bson.M) ([]models.Account, error) {
	cursor, err := s.db.Collection(interfaces.CollectionAccounts).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	for cursor.Next(ctx) {
		var doc accountDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		account, err := doc.model()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, cursor.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, account models.Account) error {
	result, err := s.db.Collection(interfaces.CollectionAccounts).ReplaceOne(ctx,
		bson.M{"_id": account.ID}, toAccountDoc(account))
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// ─── Entries ───

func (s *Store) EntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	entries, _, err := s.findEntries(ctx, bson.M{"account_id": accountID}, 0, 0)
	return entries, err
}

func (s *Store) ListEntries(ctx context.Context, filter interfaces.EntryFilter) ([]models.LedgerEntry, int64, error) {
	query := bson.M{}
	if filter.AccountID != "" {
		query["account_id"] = filter.AccountID
	}
	created := bson.M{}
	if !filter.From.IsZero() {
		created["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		created["$lt"] = filter.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}
	return s.findEntries(ctx, query, filter.Limit, filter.Offset)
}

func (s *Store) findEntries(ctx context.Context, query bson.M, limit, offset int) ([]models.LedgerEntry, int64, error) {
	collection := s.db.Collection(interfaces.CollectionEntries)

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []models.LedgerEntry
	for cursor.Next(ctx) {
		var doc entryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		entry, err := doc.model()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, cursor.Err()
}

// ─── Registry ───

func (s *Store) CreateClient(ctx context.Context, client models.Client) error {
	_, err := s.db.Collection(interfaces.CollectionClients).InsertOne(ctx, clientDoc{
		ID: client.ID, Name: client.Name, Phone: client.Phone,
		Email: client.Email, Note: client.Note, CreatedAt: client.CreatedAt,
	})
	return err
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	cursor, err := s.db.Collection(interfaces.CollectionClients).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var clients []models.Client
	for cursor.Next(ctx) {
		var doc clientDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		clients = append(clients, models.Client{
			ID: doc.ID, Name: doc.Name, Phone: doc.Phone,
			Email: doc.Email, Note: doc.Note, CreatedAt: doc.CreatedAt,
		})
	}
	return clients, cursor.Err()
}

func (s *Store) CreateContract(ctx context.Context, contract models.Contract) error {
	_, err := s.db.Collection(interfaces.CollectionContracts).InsertOne(ctx, contractDoc{
		ID: contract.ID, ClientID: contract.ClientID, TemplateID: contract.TemplateID,
		Title: contract.Title, Amount: contract.Amount.String(), CreatedAt: contract.CreatedAt,
	})
	return err
}

func (s *Store) ContractsByClient(ctx context.Context, clientID string) ([]models.Contract, error) {
	return s.findContracts(ctx, bson.M{"client_id": clientID})
}

func (s *Store) ListContracts(ctx context.Context) ([]models.Contract, error) {
	return s.findContracts(ctx, bson.M{})
}

func (s *Store) findContracts(ctx context.Context, query bson.M) ([]models.Contract, error) {
	cursor, err := s.db.Collection(interfaces.CollectionContracts).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var contracts []models.Contract
	for cursor.Next(ctx) {
		var doc contractDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		contract, err := doc.model()
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, cursor.Err()
}

func (s *Store) CreateTemplate(ctx context.Context, template models.ContractTemplate) error {
	_, err := s.db.Collection(interfaces.CollectionTemplates).InsertOne(ctx, templateDoc{
		ID: template.ID, Name: template.Name, Body: template.Body, CreatedAt: template.CreatedAt,
	})
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.ContractTemplate, error) {
	cursor, err := s.db.Collection(interfaces.CollectionTemplates).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []models.ContractTemplate
	for cursor.Next(ctx) {
		var doc templateDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		templates = append(templates, models.ContractTemplate{
			ID: doc.ID, Name: doc.Name, Body: doc.Body, CreatedAt: doc.CreatedAt,
		})
	}
	return templates, cursor.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product models.Product) error {
	_, err := s.db.Collection(interfaces.CollectionProducts).InsertOne(ctx, productDoc{
		ID: product.ID, Name: product.Name, Price: product.Price.String(),
		Unit: product.Unit, CreatedAt: product.CreatedAt,
	})
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.db.Collection(interfaces.CollectionProducts).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		product, err := doc.model()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, cursor.Err()
}

// Compile-time check: Store implements the full store surface.
var _ interfaces.Store = (*Store)(nil)
