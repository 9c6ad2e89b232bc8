package registry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, zap.NewNop()), store
}

func TestCreateClient_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateClient(context.Background(), "  ", "", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	client, err := svc.CreateClient(context.Background(), "  Aigerim  ", "+7 700 000 0000", "a@example.kz", "vip")
	require.NoError(t, err)
	assert.Equal(t, "Aigerim", client.Name)
	assert.NotEmpty(t, client.ID)
}

func TestDeleteClient_CascadesContracts(t *testing.T) {
	svc, store := newTestService(t)

	client, err := svc.CreateClient(context.Background(), "Aigerim", "", "", "")
	require.NoError(t, err)
	other, err := svc.CreateClient(context.Background(), "Bolat", "", "", "")
	require.NoError(t, err)

	_, err = svc.CreateContract(context.Background(), client.ID, "", "Supply", decimal.NewFromInt(50000))
	require.NoError(t, err)
	_, err = svc.CreateContract(context.Background(), client.ID, "", "Service", decimal.NewFromInt(12000))
	require.NoError(t, err)
	kept, err := svc.CreateContract(context.Background(), other.ID, "", "Rent", decimal.NewFromInt(90000))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteClient(context.Background(), client.ID))

	contracts, err := store.ContractsByClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Empty(t, contracts, "deleted client's contracts must be gone")

	remaining, err := svc.Contracts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)

	clients, err := svc.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, other.ID, clients[0].ID)
}

func TestDeleteClient_BatchFailureKeepsEverything(t *testing.T) {
	svc, store := newTestService(t)

	client, err := svc.CreateClient(context.Background(), "Aigerim", "", "", "")
	require.NoError(t, err)
	_, err = svc.CreateContract(context.Background(), client.ID, "", "Supply", decimal.NewFromInt(1))
	require.NoError(t, err)

	store.FailNextBatch(assert.AnError)
	err = svc.DeleteClient(context.Background(), client.ID)
	require.ErrorIs(t, err, ErrDeleteFailed)

	contracts, err := store.ContractsByClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Len(t, contracts, 1)
	clients, err := svc.ListClients(context.Background())
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestCreateContract_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateContract(context.Background(), "", "", "Supply", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateContract(context.Background(), "c1", "", "  ", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateContract(context.Background(), "c1", "", "Supply", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	contract, err := svc.CreateContract(context.Background(), "c1", "t1", " Supply ", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "Supply", contract.Title)
	assert.Equal(t, "t1", contract.TemplateID)
}

func TestContracts_FilterByClient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateContract(context.Background(), "c1", "", "One", decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = svc.CreateContract(context.Background(), "c2", "", "Two", decimal.NewFromInt(2))
	require.NoError(t, err)

	all, err := svc.Contracts(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.Contracts(context.Background(), "c2")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Two", scoped[0].Title)
}

func TestTemplates(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTemplate(context.Background(), " ", "body")
	assert.ErrorIs(t, err, ErrInvalidInput)

	template, err := svc.CreateTemplate(context.Background(), "Standard", "Terms: {{amount}}")
	require.NoError(t, err)

	templates, err := svc.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	require.NoError(t, svc.DeleteTemplate(context.Background(), template.ID))
	templates, err = svc.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestProducts(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), "", "pcs", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateProduct(context.Background(), "Cement", "kg", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrInvalidInput)

	product, err := svc.CreateProduct(context.Background(), "Cement", "kg", decimal.NewFromInt(450))
	require.NoError(t, err)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(450)))

	require.NoError(t, svc.DeleteProduct(context.Background(), product.ID))
	products, err = svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}
