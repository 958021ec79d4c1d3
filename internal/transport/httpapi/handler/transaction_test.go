package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/handler"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
)

// MockLedgerService is a mock implementation of handler.LedgerServiceInterface
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, budgetID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerService) RecordTransaction(ctx context.Context, budgetID uuid.UUID, txType ledger.TransactionType, occurredAt time.Time, description string, items []ledger.ItemInput) (*ledger.Transaction, error) {
	args := m.Called(ctx, budgetID, txType, occurredAt, description, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerService) DeleteTransaction(ctx context.Context, budgetID, txID uuid.UUID) error {
	args := m.Called(ctx, budgetID, txID)
	return args.Error(0)
}

func (m *MockLedgerService) ClearDraftItem(ctx context.Context, budgetID, itemID uuid.UUID, clearingAt time.Time) (*ledger.Transaction, error) {
	args := m.Called(ctx, budgetID, itemID, clearingAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerService) PayCreditCardBill(ctx context.Context, budgetID uuid.UUID, input ledger.PayBillInput) (*ledger.Transaction, error) {
	args := m.Called(ctx, budgetID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

// newCreateRequest builds an authenticated POST with the budget id routed.
func newCreateRequest(t *testing.T, budgetID, userID uuid.UUID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/budgets/"+budgetID.String()+"/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", budgetID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestTransactionHandlerCreateTransaction(t *testing.T) {
	budgetID := uuid.New()
	userID := uuid.New()
	occurredAt := time.Now().UTC().Format(time.RFC3339)

	accountA := uuid.New().String()
	accountB := uuid.New().String()

	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockLedgerService)
		wantStatus int
	}{
		{
			name: "expense accepted",
			body: `{"type":"expense","occurred_at":"` + occurredAt + `","items":[` +
				`{"account_id":"` + accountA + `","amount":"-10.00"},` +
				`{"account_id":"` + accountB + `","amount":"-10.00"}]}`,
			setupMock: func(m *MockLedgerService) {
				m.On("HasAccess", mock.Anything, budgetID, userID).Return(true, nil)
				m.On("RecordTransaction", mock.Anything, budgetID, ledger.TxTypeExpense,
					mock.AnythingOfType("time.Time"), "", mock.AnythingOfType("[]ledger.ItemInput")).
					Return(&ledger.Transaction{
						ID:         uuid.New(),
						BudgetID:   budgetID,
						Type:       ledger.TxTypeExpense,
						OccurredAt: time.Now().UTC(),
						RecordedAt: time.Now().UTC(),
					}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "clearing type refused on the generic endpoint",
			body: `{"type":"clearing","occurred_at":"` + occurredAt + `","items":[` +
				`{"account_id":"` + accountA + `","amount":"-10.00"}]}`,
			setupMock: func(m *MockLedgerService) {
				m.On("HasAccess", mock.Anything, budgetID, userID).Return(true, nil)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown type refused",
			body: `{"type":"withdrawal","occurred_at":"` + occurredAt + `","items":[` +
				`{"account_id":"` + accountA + `","amount":"-10.00"}]}`,
			setupMock: func(m *MockLedgerService) {
				m.On("HasAccess", mock.Anything, budgetID, userID).Return(true, nil)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLedgerService)
			tt.setupMock(svc)
			h := handler.NewTransactionHandler(svc)

			rec := httptest.NewRecorder()
			h.CreateTransaction(rec, newCreateRequest(t, budgetID, userID, tt.body))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusCreated {
				svc.AssertNotCalled(t, "RecordTransaction",
					mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestTransactionHandlerDeleteClearingConflict(t *testing.T) {
	budgetID := uuid.New()
	userID := uuid.New()
	txID := uuid.New()

	svc := new(MockLedgerService)
	svc.On("HasAccess", mock.Anything, budgetID, userID).Return(true, nil)
	svc.On("DeleteTransaction", mock.Anything, budgetID, txID).Return(ledger.ErrClearingImmutable)
	h := handler.NewTransactionHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/budgets/"+budgetID.String()+"/transactions/"+txID.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", budgetID.String())
	rctx.URLParams.Add("txID", txID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)

	rec := httptest.NewRecorder()
	h.DeleteTransaction(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}
