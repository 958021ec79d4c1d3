package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pbujok/budgetbook/internal/ledger"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondLedgerError maps ledger sentinel errors onto HTTP status codes and
// sends the response. Unknown errors become an opaque 500.
func respondLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrDuplicateName):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrAlreadyCleared),
		errors.Is(err, ledger.ErrClearingImmutable):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNonZeroBalance),
		errors.Is(err, ledger.ErrGeneralAccount),
		errors.Is(err, ledger.ErrBillAmountMismatch),
		errors.Is(err, ledger.ErrUnbalancedTransaction),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDraftStatus),
		errors.Is(err, ledger.ErrInvalidTransactionType),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrAccountInactive),
		errors.Is(err, ledger.ErrMissingCompanion),
		errors.Is(err, ledger.ErrBudgetMismatch):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrPersistenceDiverged):
		// The budget was dropped for reload; the client should retry.
		respondError(w, "budget state diverged, please retry", http.StatusConflict)
	default:
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}
