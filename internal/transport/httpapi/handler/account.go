package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
	"github.com/pbujok/budgetbook/pkg/money"
)

// AccountServiceInterface defines the account operations needed by AccountHandler
type AccountServiceInterface interface {
	HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error)
	CreateCategoryAccount(ctx context.Context, budgetID uuid.UUID, name, description string) (*ledger.Account, error)
	CreateChargeAccount(ctx context.Context, budgetID uuid.UUID, name, description string) (*ledger.Account, error)
	CreateRealAccount(ctx context.Context, budgetID uuid.UUID, name, description string, initialBalance money.Amount, withDraftCompanion bool) (*ledger.Account, error)
	DeactivateAccount(ctx context.Context, budgetID, accountID uuid.UUID) error
	ListAccountTransactions(ctx context.Context, budgetID, accountID uuid.UUID, filter ledger.ItemFilter) (*ledger.ItemPage, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	Type        string `json:"type"` // category, real, charge
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Real accounts only
	InitialBalance     string `json:"initial_balance,omitempty"`
	WithDraftCompanion bool   `json:"with_draft_companion,omitempty"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID          string `json:"id"`
	BudgetID    string `json:"budget_id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Balance     string `json:"balance"`
	General     bool   `json:"general,omitempty"`
	CompanionID string `json:"companion_id,omitempty"`
}

func toAccountResponse(a *ledger.Account) AccountResponse {
	resp := AccountResponse{
		ID:          a.ID.String(),
		BudgetID:    a.BudgetID.String(),
		Type:        string(a.Type),
		Name:        a.Name,
		Description: a.Description,
		Balance:     a.Balance.String(),
		General:     a.General,
	}
	if a.CompanionID != nil {
		resp.CompanionID = a.CompanionID.String()
	}
	return resp
}

// CreateAccount handles POST /budgets/{id}/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		respondError(w, "account name is required", http.StatusBadRequest)
		return
	}

	var (
		account *ledger.Account
		err     error
	)
	switch ledger.AccountType(req.Type) {
	case ledger.AccountTypeCategory:
		account, err = h.service.CreateCategoryAccount(r.Context(), budgetID, req.Name, req.Description)
	case ledger.AccountTypeCharge:
		account, err = h.service.CreateChargeAccount(r.Context(), budgetID, req.Name, req.Description)
	case ledger.AccountTypeReal:
		initialBalance := money.Zero()
		if req.InitialBalance != "" {
			initialBalance, err = money.Parse(req.InitialBalance)
			if err != nil {
				respondError(w, "invalid initial_balance format", http.StatusBadRequest)
				return
			}
		}
		account, err = h.service.CreateRealAccount(r.Context(), budgetID, req.Name, req.Description, initialBalance, req.WithDraftCompanion)
	default:
		respondError(w, "invalid account type (use category, real or charge)", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, toAccountResponse(account), http.StatusCreated)
}

// DeactivateAccount handles DELETE /budgets/{id}/accounts/{accountID}
func (h *AccountHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, "invalid account ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), budgetID, accountID); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "deactivated"}, http.StatusOK)
}

// ItemViewResponse represents one history entry for an account
type ItemViewResponse struct {
	ItemID        string `json:"item_id"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	TypeLabel     string `json:"type_label"`
	Description   string `json:"description,omitempty"`
	OccurredAt    string `json:"occurred_at"`
	Amount        string `json:"amount"`
	DraftStatus   string `json:"draft_status,omitempty"`
	ClearedByID   string `json:"cleared_by_id,omitempty"`
}

// ItemPageResponse represents a paginated account history
type ItemPageResponse struct {
	Items  []ItemViewResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ListTransactions handles GET /budgets/{id}/accounts/{accountID}/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, "invalid account ID", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	filter := ledger.ItemFilter{}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))
	if t := query.Get("type"); t != "" {
		txType := ledger.TransactionType(t)
		if !txType.IsValid() {
			respondError(w, "invalid transaction type", http.StatusBadRequest)
			return
		}
		filter.Type = &txType
	}

	page, err := h.service.ListAccountTransactions(r.Context(), budgetID, accountID, filter)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	resp := ItemPageResponse{
		Items:  make([]ItemViewResponse, len(page.Items)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for i, item := range page.Items {
		view := ItemViewResponse{
			ItemID:        item.ItemID.String(),
			TransactionID: item.TransactionID.String(),
			Type:          string(item.Type),
			TypeLabel:     item.Type.Label(),
			Description:   item.Description,
			OccurredAt:    item.OccurredAt.Format(time.RFC3339),
			Amount:        item.Amount.String(),
		}
		if item.DraftStatus != ledger.DraftStatusNone {
			view.DraftStatus = string(item.DraftStatus)
		}
		if item.ClearedByID != nil {
			view.ClearedByID = item.ClearedByID.String()
		}
		resp.Items[i] = view
	}
	respondJSON(w, resp, http.StatusOK)
}

func (h *AccountHandler) authorizeBudget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}

	budgetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid budget ID", http.StatusBadRequest)
		return uuid.Nil, false
	}

	allowed, err := h.service.HasAccess(r.Context(), budgetID, userID)
	if err != nil {
		respondError(w, "failed to check access", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	if !allowed {
		respondError(w, "budget not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return budgetID, true
}
