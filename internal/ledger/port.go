package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/pkg/money"
)

// AccountRepository is the storage boundary for accounts. Every mutating call
// either fully succeeds or fails with a typed error; batch updates happen in a
// single storage-level transaction.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, budgetID uuid.UUID) ([]*Account, error)
	ListDeactivated(ctx context.Context, budgetID uuid.UUID) ([]*Account, error)
	// UpdateBalances writes the given accounts' balances in one storage
	// transaction; no partial application.
	UpdateBalances(ctx context.Context, accounts []*Account) error
}

// TransactionRepository is the storage boundary for transactions and items.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	// Delete removes a transaction and returns its items so the caller can
	// reverse their balance effects.
	Delete(ctx context.Context, id uuid.UUID) ([]*TransactionItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*TransactionItem, error)
	ListItemsForAccount(ctx context.Context, accountID uuid.UUID, filter ItemFilter) (*ItemPage, error)
	// CreateClearing records the clearing transaction and, in the same storage
	// transaction, marks the cleared item and links both it and its owning
	// transaction to the clearing transaction.
	CreateClearing(ctx context.Context, clearing *Transaction, clearedItemID uuid.UUID) error
	// CreatePayment records a credit-card payment transaction and marks every
	// covered outstanding item cleared, atomically.
	CreatePayment(ctx context.Context, payment *Transaction, coveredItemIDs []uuid.UUID) error
}

// BudgetRepository provisions budgets, grants access and loads budget state
// wholesale.
type BudgetRepository interface {
	// CreateBudget persists a fresh budget together with its general account
	// and the owner's access grant.
	CreateBudget(ctx context.Context, budget *BudgetData, ownerID uuid.UUID) error
	GrantAccess(ctx context.Context, budgetID, userID uuid.UUID) error
	HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error)
	UpdateSettings(ctx context.Context, budgetID uuid.UUID, timeZone string, analyticsStart time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]BudgetInfo, error)
	// LoadBudget rebuilds the full BudgetData aggregate, active and
	// deactivated accounts included.
	LoadBudget(ctx context.Context, budgetID uuid.UUID) (*BudgetData, error)
}

// BudgetInfo is the listing view of a budget.
type BudgetInfo struct {
	ID             uuid.UUID
	Name           string
	TimeZone       string
	AnalyticsStart time.Time
}

// ItemFilter narrows and pages a per-account item listing.
type ItemFilter struct {
	Type   *TransactionType
	Limit  int
	Offset int
}

// ItemView is a transaction item joined with its transaction header for
// history display.
type ItemView struct {
	ItemID        uuid.UUID
	TransactionID uuid.UUID
	Type          TransactionType
	Description   string
	OccurredAt    time.Time
	Amount        money.Amount
	DraftStatus   DraftStatus
	ClearedByID   *uuid.UUID
}

// ItemPage is one page of an account's transaction history.
type ItemPage struct {
	Items  []ItemView
	Total  int
	Limit  int
	Offset int
}
