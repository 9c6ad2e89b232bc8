package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/models"
)

// ─── Clients ───

type createClientRequest struct {
	Name  string `json:"name" validate:"required,max=128"`
	Phone string `json:"phone" validate:"max=32"`
	Email string `json:"email" validate:"omitempty,email"`
	Note  string `json:"note" validate:"max=255"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	client, err := s.registry.CreateClient(r.Context(), req.Name, req.Phone, req.Email, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.registry.ListClients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": clients})
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteClient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ─── Contracts ───

type createContractRequest struct {
	ClientID   string `json:"client_id" validate:"required"`
	TemplateID string `json:"template_id"`
	Title      string `json:"title" validate:"required,max=128"`
	Amount     string `json:"amount" validate:"required"`
}

type contractResponse struct {
	ID         string `json:"id"`
	ClientID   string `json:"client_id"`
	TemplateID string `json:"template_id,omitempty"`
	Title      string `json:"title"`
	Amount     string `json:"amount"`
	Formatted  string `json:"formatted"`
	CreatedAt  string `json:"created_at"`
}

func toContractResponse(c models.Contract) contractResponse {
	return contractResponse{
		ID:         c.ID,
		ClientID:   c.ClientID,
		TemplateID: c.TemplateID,
		Title:      c.Title,
		Amount:     c.Amount.String(),
		Formatted:  formatTenge(c.Amount),
		CreatedAt:  c.CreatedAt.Format(timeLayout),
	}
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount must be a decimal number"})
		return
	}

	contract, err := s.registry.CreateContract(r.Context(), req.ClientID, req.TemplateID, req.Title, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractResponse(contract))
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.registry.Contracts(r.Context(), r.URL.Query().Get("client_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]contractResponse, 0, len(contracts))
	for _, contract := range contracts {
		items = append(items, toContractResponse(contract))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteContract(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ─── Templates ───

type createTemplateRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	Body string `json:"body"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	template, err := s.registry.CreateTemplate(r.Context(), req.Name, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.registry.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if templates == nil {
		templates = []models.ContractTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": templates})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ─── Products ───

type createProductRequest struct {
	Name  string `json:"name" validate:"required,max=128"`
	Price string `json:"price" validate:"required"`
	Unit  string `json:"unit" validate:"max=32"`
}

type productResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Formatted string `json:"formatted"`
	Unit      string `json:"unit"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "price must be a decimal number"})
		return
	}

	product, err := s.registry.CreateProduct(r.Context(), req.Name, req.Unit, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func toProductResponse(p models.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.String(),
		Formatted: formatTenge(p.Price),
		Unit:      p.Unit,
		CreatedAt: p.CreatedAt.Format(timeLayout),
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.registry.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, product := range products {
		items = append(items, toProductResponse(product))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
