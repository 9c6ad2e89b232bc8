package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/ledger"
	"github.com/kassabook/ledger-service/internal/registry"
)

// timeLayout is the wire format for timestamps.
const timeLayout = "2006-01-02T15:04:05Z07:00"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors onto HTTP statuses. All failures come
// back as typed errors from the core; presentation happens only here.
func writeError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrInvalidTitle),
		errors.Is(err, registry.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrTransferFailed):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// formatTenge renders an amount as display text, e.g. "3000 ₸". This is
// the only place currency formatting exists; the core works on decimals.
func formatTenge(amount decimal.Decimal) string {
	return fmt.Sprintf("%s ₸", amount.String())
}
