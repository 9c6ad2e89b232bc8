package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/models"
)

type accountResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Balance   string `json:"balance"`
	Formatted string `json:"formatted"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toAccountResponse(a models.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Title:     a.Title,
		Balance:   a.Balance.String(),
		Formatted: formatTenge(a.Balance),
		CreatedAt: a.CreatedAt.Format(timeLayout),
		UpdatedAt: a.UpdatedAt.Format(timeLayout),
	}
}

type createAccountRequest struct {
	Title string `json:"title" validate:"required,max=64"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.ledger.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, toAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"stats": map[string]any{
			"total_balance": stats.TotalBalance.String(),
			"total_income":  stats.TotalIncome.String(),
			"total_expense": stats.TotalExpense.String(),
			"accounts":      stats.Accounts,
			"formatted":     formatTenge(stats.TotalBalance),
		},
	})
}

type renameAccountRequest struct {
	Title string `json:"title" validate:"required,max=64"`
}

func (s *Server) handleRenameAccount(w http.ResponseWriter, r *http.Request) {
	var req renameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.ledger.RenameAccount(r.Context(), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type adjustBalanceRequest struct {
	Balance string `json:"balance" validate:"required"`
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "balance must be a decimal number"})
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.ledger.AdjustBalance(r.Context(), id, balance); err != nil {
		writeError(w, err)
		return
	}
	account, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cascade := r.URL.Query().Get("cascade") == "true"

	// The cascade key is the account's title, so resolve it first.
	account, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.ledger.DeleteAccount(r.Context(), id, account.Title, cascade); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "cascade": cascade})
}
