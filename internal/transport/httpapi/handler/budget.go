package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
)

// BudgetServiceInterface defines the budget operations needed by BudgetHandler
type BudgetServiceInterface interface {
	CreateBudget(ctx context.Context, ownerID uuid.UUID, name, timeZone string) (*ledger.BudgetData, error)
	ListBudgets(ctx context.Context, userID uuid.UUID) ([]ledger.BudgetInfo, error)
	HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error)
	UpdateSettings(ctx context.Context, budgetID uuid.UUID, timeZone string, analyticsStart time.Time) error
	GetSummary(ctx context.Context, budgetID uuid.UUID) (*ledger.BudgetSummary, error)
}

// BudgetHandler handles budget-related HTTP requests
type BudgetHandler struct {
	service BudgetServiceInterface
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(service BudgetServiceInterface) *BudgetHandler {
	return &BudgetHandler{service: service}
}

// CreateBudgetRequest represents the budget creation request
type CreateBudgetRequest struct {
	Name     string `json:"name"`
	TimeZone string `json:"time_zone,omitempty"`
}

// BudgetResponse represents a budget in API responses
type BudgetResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TimeZone       string `json:"time_zone"`
	AnalyticsStart string `json:"analytics_start"`
}

// CreateBudget handles POST /budgets
func (h *BudgetHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		respondError(w, "budget name is required", http.StatusBadRequest)
		return
	}

	budget, err := h.service.CreateBudget(r.Context(), userID, req.Name, req.TimeZone)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, BudgetResponse{
		ID:             budget.ID.String(),
		Name:           budget.Name,
		TimeZone:       budget.TimeZone.String(),
		AnalyticsStart: budget.AnalyticsStart.Format(time.RFC3339),
	}, http.StatusCreated)
}

// ListBudgets handles GET /budgets
func (h *BudgetHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	budgets, err := h.service.ListBudgets(r.Context(), userID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	responses := make([]BudgetResponse, len(budgets))
	for i, b := range budgets {
		responses[i] = BudgetResponse{
			ID:             b.ID.String(),
			Name:           b.Name,
			TimeZone:       b.TimeZone,
			AnalyticsStart: b.AnalyticsStart.Format(time.RFC3339),
		}
	}
	respondJSON(w, map[string]any{"budgets": responses}, http.StatusOK)
}

// GetSummary handles GET /budgets/{id}/summary
func (h *BudgetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(r.Context(), budgetID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, summary, http.StatusOK)
}

// UpdateSettingsRequest represents the settings update request
type UpdateSettingsRequest struct {
	TimeZone       string `json:"time_zone"`
	AnalyticsStart string `json:"analytics_start"` // RFC3339
}

// UpdateSettings handles PUT /budgets/{id}/settings
func (h *BudgetHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	budgetID, ok := h.authorizeBudget(w, r)
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TimeZone == "" {
		respondError(w, "time_zone is required", http.StatusBadRequest)
		return
	}
	analyticsStart, err := time.Parse(time.RFC3339, req.AnalyticsStart)
	if err != nil {
		respondError(w, "invalid analytics_start format (use RFC3339)", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateSettings(r.Context(), budgetID, req.TimeZone, analyticsStart); err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// authorizeBudget parses the budget id from the URL and checks the caller's
// access. A missing grant reads as 404 to avoid leaking budget ids.
func (h *BudgetHandler) authorizeBudget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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
