// Package registry manages the non-ledger business documents: clients,
// contracts, contract templates and products.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/models"
)

var (
	// ErrInvalidInput rejects empty names or non-positive amounts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDeleteFailed means a delete batch did not commit.
	ErrDeleteFailed = errors.New("delete failed")
)

// Service is a thin CRUD layer over the registry collections. Deleting a
// client cascades its contracts in one all-or-nothing batch.
type Service struct {
	store interfaces.Store
	log   *zap.Logger
	newID func() string
}

func nowUTC() time.Time { return time.Now().UTC() }

// NewService builds the registry service.
func NewService(store interfaces.Store, log *zap.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
		newID: func() string { return uuid.New().String() },
	}
}

// CreateClient registers a new client.
func (s *Service) CreateClient(ctx context.Context, name, phone, email, note string) (models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Client{}, fmt.Errorf("%w: client name must not be empty", ErrInvalidInput)
	}
	client := models.Client{
		ID:        s.newID(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		Note:      note,
		CreatedAt: nowUTC(),
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return models.Client{}, err
	}
	return client, nil
}

// ListClients returns all clients.
func (s *Service) ListClients(ctx context.Context) ([]models.Client, error) {
	return s.store.ListClients(ctx)
}

// DeleteClient removes a client and every contract referencing it as one
// batch. Either everything is removed or nothing is.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	contracts, err := s.store.ContractsByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: find contracts for client %s: %v", ErrDeleteFailed, id, err)
	}

	refs := make([]interfaces.DocRef, 0, len(contracts)+1)
	for _, contract := range contracts {
		refs = append(refs, interfaces.DocRef{Collection: interfaces.CollectionContracts, ID: contract.ID})
	}
	refs = append(refs, interfaces.DocRef{Collection: interfaces.CollectionClients, ID: id})

	if err := s.store.BatchDelete(ctx, refs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	s.log.Info("client deleted", zap.String("client_id", id), zap.Int("contracts", len(contracts)))
	return nil
}

// CreateContract records a contract for a client.
func (s *Service) CreateContract(ctx context.Context, clientID, templateID, title string, amount decimal.Decimal) (models.Contract, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(title) == "" {
		return models.Contract{}, fmt.Errorf("%w: contract needs a client and a title", ErrInvalidInput)
	}
	if amount.Sign() < 0 {
		return models.Contract{}, fmt.Errorf("%w: contract amount must not be negative", ErrInvalidInput)
	}
	contract := models.Contract{
		ID:         s.newID(),
		ClientID:   clientID,
		TemplateID: templateID,
		Title:      strings.TrimSpace(title),
		Amount:     amount,
		CreatedAt:  nowUTC(),
	}
	if err := s.store.CreateContract(ctx, contract); err != nil {
		return models.Contract{}, err
	}
	return contract, nil
}

// Contracts lists contracts, optionally narrowed to one client.
func (s *Service) Contracts(ctx context.Context, clientID string) ([]models.Contract, error) {
	if clientID != "" {
		return s.store.ContractsByClient(ctx, clientID)
	}
	return s.store.ListContracts(ctx)
}

// DeleteContract removes a single contract.
func (s *Service) DeleteContract(ctx context.Context, id string) error {
	refs := []interfaces.DocRef{{Collection: interfaces.CollectionContracts, ID: id}}
	if err := s.store.BatchDelete(ctx, refs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// CreateTemplate stores a reusable contract template.
func (s *Service) CreateTemplate(ctx context.Context, name, body string) (models.ContractTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ContractTemplate{}, fmt.Errorf("%w: template name must not be empty", ErrInvalidInput)
	}
	template := models.ContractTemplate{
		ID:        s.newID(),
		Name:      name,
		Body:      body,
		CreatedAt: nowUTC(),
	}
	if err := s.store.CreateTemplate(ctx, template); err != nil {
		return models.ContractTemplate{}, err
	}
	return template, nil
}

// ListTemplates returns all templates.
func (s *Service) ListTemplates(ctx context.Context) ([]models.ContractTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	refs := []interfaces.DocRef{{Collection: interfaces.CollectionTemplates, ID: id}}
	if err := s.store.BatchDelete(ctx, refs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// CreateProduct adds a catalog item.
func (s *Service) CreateProduct(ctx context.Context, name, unit string, price decimal.Decimal) (models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Product{}, fmt.Errorf("%w: product name must not be empty", ErrInvalidInput)
	}
	if price.Sign() < 0 {
		return models.Product{}, fmt.Errorf("%w: product price must not be negative", ErrInvalidInput)
	}
	product := models.Product{
		ID:        s.newID(),
		Name:      name,
		Price:     price,
		Unit:      unit,
		CreatedAt: nowUTC(),
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return models.Product{}, err
	}
	return product, nil
}

// ListProducts returns the catalog.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

// DeleteProduct removes a catalog item.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	refs := []interfaces.DocRef{{Collection: interfaces.CollectionProducts, ID: id}}
	if err := s.store.BatchDelete(ctx, refs); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}
