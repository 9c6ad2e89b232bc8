package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

type transferRequest struct {
	SourceID    string `json:"source_id" validate:"required"`
	TargetID    string `json:"target_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

type transferResponse struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	SourceTitle string `json:"source_title"`
	TargetTitle string `json:"target_title"`
	Amount      string `json:"amount"`
	Formatted   string `json:"formatted"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
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

	transfer, err := s.ledger.Transfer(r.Context(), req.SourceID, req.TargetID, amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transferResponse{
		ID:          transfer.ID,
		SourceID:    transfer.SourceID,
		TargetID:    transfer.TargetID,
		SourceTitle: transfer.SourceTitle,
		TargetTitle: transfer.TargetTitle,
		Amount:      transfer.Amount.String(),
		Formatted:   formatTenge(transfer.Amount),
		Description: transfer.Description,
		CreatedAt:   transfer.CreatedAt.Format(timeLayout),
	})
}
