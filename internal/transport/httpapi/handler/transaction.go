package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
	"github.com/pbujok/budgetbook/pkg/money"
)

// LedgerServiceInterface defines the transaction operations needed by TransactionHandler
type LedgerServiceInterface interface {
	HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error)
	RecordTransaction(ctx context.Context, budgetID uuid.UUID, txType ledger.TransactionType, occurredAt time.Time, description string, items []ledger.ItemInput) (*ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, budgetID, txID uuid.UUID) error
	ClearDraftItem(ctx context.Context, budgetID, itemID uuid.UUID, clearingAt time.Time) (*ledger.Transaction, error)
	PayCreditCardBill(ctx context.Context, budgetID uuid.UUID, input ledger.PayBillInput) (*ledger.Transaction, error)
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	service LedgerServiceInterface
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service LedgerServiceInterface) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// ItemRequest represents one balance movement in a transaction request
type ItemRequest struct {
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"` // decimal string, two fraction digits
	Description string `json:"description,omitempty"`
	DraftStatus string `json:"draft_status,omitempty"`
}

// CreateTransactionRequest represents the transaction creation request
type CreateTransactionRequest struct {
	Type        string        `json:"type"` // expense, income, initial, allowance, transfer (clearing is endpoint-driven)
	Description string        `json:"description,omitempty"`
	OccurredAt  string        `json:"occurred_at"` // RFC3339
	Items       []ItemRequest `json:"items"`
}

// ItemResponse represents one item of a transaction response
type ItemResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	DraftStatus string `json:"draft_status,omitempty"`
}

// TransactionResponse represents a transaction response
type TransactionResponse struct {
	ID          string         `json:"id"`
	BudgetID    string         `json:"budget_id"`
	Type        string         `json:"type"`
	TypeLabel   string         `json:"type_label"`
	Description string         `json:"description,omitempty"`
	OccurredAt  string         `json:"occurred_at"`
	RecordedAt  string         `json:"recorded_at"`
	Items       []ItemResponse `json:"items"`
}

func toTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:          tx.ID.String(),
		BudgetID:    tx.BudgetID.String(),
		Type:        string(tx.Type),
		TypeLabel:   tx.Type.Label(),
		Description: tx.Description,
		OccurredAt:  tx.OccurredAt.Format(time.RFC3339),
		RecordedAt:  tx.RecordedAt.Format(time.RFC3339),
		Items:       make([]ItemResponse, len(tx.Items)),
	}
	for i, item := range tx.Items {
		ir := ItemResponse{
			ID:          item.ID.String(),
			AccountID:   item.AccountID.String(),
			AccountType: string(item.AccountType),
			Amount:      item.Amount.String(),
			Description: item.Description,
		}
		if item.DraftStatus != ledger.DraftStatusNone {
			ir.DraftStatus = string(item.DraftStatus)
		}
		resp.Items[i] = ir
	}
	return resp
}

// CreateTransaction handles POST /budgets/{id}/transactions
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	txType := ledger.TransactionType(req.Type)
	if !txType.IsValid() {
		respondError(w, "invalid transaction type", http.StatusBadRequest)
		return
	}
	// Clearing transactions must settle an outstanding item; they are created
	// through the clear and bill payment endpoints, never free-standing.
	if txType == ledger.TxTypeClearing {
		respondError(w, "clearing transactions are created via item clearing or bill payment", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, "transaction items are required", http.StatusBadRequest)
		return
	}
	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		respondError(w, "invalid occurred_at format (use RFC3339)", http.StatusBadRequest)
		return
	}

	items := make([]ledger.ItemInput, len(req.Items))
	for i, in := range req.Items {
		accountID, err := uuid.Parse(in.AccountID)
		if err != nil {
			respondError(w, "invalid account_id", http.StatusBadRequest)
			return
		}
		amount, err := money.Parse(in.Amount)
		if err != nil {
			respondError(w, "invalid amount format", http.StatusBadRequest)
			return
		}
		item := ledger.ItemInput{
			AccountID:   accountID,
			Amount:      amount,
			Description: in.Description,
		}
		if in.DraftStatus != "" {
			status := ledger.DraftStatus(in.DraftStatus)
			if !status.IsValid() {
				respondError(w, "invalid draft_status", http.StatusBadRequest)
				return
			}
			item.DraftStatus = &status
		}
		items[i] = item
	}

	tx, err := h.service.RecordTransaction(r.Context(), budgetID, txType, occurredAt, req.Description, items)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, toTransactionResponse(tx), http.StatusCreated)
}

// DeleteTransaction handles DELETE /budgets/{id}/transactions/{txID}
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	txID, err := uuid.Parse(chi.URLParam(r, "txID"))
	if err != nil {
		respondError(w, "invalid transaction ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), budgetID, txID); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// ClearItemRequest represents a check clearing request
type ClearItemRequest struct {
	ClearedAt string `json:"cleared_at,omitempty"` // RFC3339, defaults to now
}

// ClearItem handles POST /budgets/{id}/items/{itemID}/clear
func (h *TransactionHandler) ClearItem(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, "invalid item ID", http.StatusBadRequest)
		return
	}

	var req ClearItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	clearedAt := time.Now().UTC()
	if req.ClearedAt != "" {
		clearedAt, err = time.Parse(time.RFC3339, req.ClearedAt)
		if err != nil {
			respondError(w, "invalid cleared_at format (use RFC3339)", http.StatusBadRequest)
			return
		}
	}

	clearing, err := h.service.ClearDraftItem(r.Context(), budgetID, itemID, clearedAt)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, toTransactionResponse(clearing), http.StatusCreated)
}

// PayBillRequest represents a credit-card bill payment request
type PayBillRequest struct {
	ChargeAccountID string   `json:"charge_account_id"`
	PayingRealID    string   `json:"paying_real_id"`
	Amount          string   `json:"amount"`
	CoveredItemIDs  []string `json:"covered_item_ids"`
	OccurredAt      string   `json:"occurred_at,omitempty"` // RFC3339, defaults to now
	Description     string   `json:"description,omitempty"`
}

// PayBill handles POST /budgets/{id}/bills/pay
func (h *TransactionHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	var req PayBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	chargeID, err := uuid.Parse(req.ChargeAccountID)
	if err != nil {
		respondError(w, "invalid charge_account_id", http.StatusBadRequest)
		return
	}
	realID, err := uuid.Parse(req.PayingRealID)
	if err != nil {
		respondError(w, "invalid paying_real_id", http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondError(w, "invalid amount format", http.StatusBadRequest)
		return
	}
	if len(req.CoveredItemIDs) == 0 {
		respondError(w, "covered_item_ids are required", http.StatusBadRequest)
		return
	}
	coveredIDs := make([]uuid.UUID, len(req.CoveredItemIDs))
	for i, raw := range req.CoveredItemIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, "invalid covered item ID", http.StatusBadRequest)
			return
		}
		coveredIDs[i] = id
	}
	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			respondError(w, "invalid occurred_at format (use RFC3339)", http.StatusBadRequest)
			return
		}
	}

	payment, err := h.service.PayCreditCardBill(r.Context(), budgetID, ledger.PayBillInput{
		ChargeAccountID: chargeID,
		PayingRealID:    realID,
		Amount:          amount,
		CoveredItemIDs:  coveredIDs,
		OccurredAt:      occurredAt,
		Description:     req.Description,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, toTransactionResponse(payment), http.StatusCreated)
}

func (h *TransactionHandler) authorizeBudget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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
