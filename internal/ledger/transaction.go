package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/pkg/money"
)

// TransactionType represents the shape of a transaction.
type TransactionType string

const (
	// TxTypeExpense spends from an envelope through a real, charge or draft account.
	TxTypeExpense TransactionType = "expense"
	// TxTypeIncome injects money at a real account and the general account together.
	TxTypeIncome TransactionType = "income"
	// TxTypeInitial records an opening balance.
	TxTypeInitial TransactionType = "initial"
	// TxTypeAllowance moves planned funds from the general account into an envelope.
	TxTypeAllowance TransactionType = "allowance"
	// TxTypeTransfer moves funds between two accounts of commensurable kind.
	TxTypeTransfer TransactionType = "transfer"
	// TxTypeClearing reconciles an outstanding draft or charge item against a
	// real account.
	TxTypeClearing TransactionType = "clearing"
)

// IsValid returns true for a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TxTypeExpense, TxTypeIncome, TxTypeInitial, TxTypeAllowance, TxTypeTransfer, TxTypeClearing:
		return true
	}
	return false
}

// Label returns a human-readable label for display.
func (t TransactionType) Label() string {
	switch t {
	case TxTypeExpense:
		return "Expense"
	case TxTypeIncome:
		return "Income"
	case TxTypeInitial:
		return "Initial Balance"
	case TxTypeAllowance:
		return "Allowance"
	case TxTypeTransfer:
		return "Transfer"
	case TxTypeClearing:
		return "Clearing"
	default:
		return "Unknown"
	}
}

// AllTransactionTypes returns every valid transaction type.
func AllTransactionTypes() []TransactionType {
	return []TransactionType{
		TxTypeExpense, TxTypeIncome, TxTypeInitial,
		TxTypeAllowance, TxTypeTransfer, TxTypeClearing,
	}
}

// DraftStatus tracks the lifecycle of draft and charge items. Real and
// category items always carry DraftStatusNone.
type DraftStatus string

const (
	DraftStatusNone        DraftStatus = "none"
	DraftStatusOutstanding DraftStatus = "outstanding"
	DraftStatusClearing    DraftStatus = "clearing"
	DraftStatusCleared     DraftStatus = "cleared"
)

// IsValid returns true for a known draft status.
func (s DraftStatus) IsValid() bool {
	switch s {
	case DraftStatusNone, DraftStatusOutstanding, DraftStatusClearing, DraftStatusCleared:
		return true
	}
	return false
}

// TransactionItem is a single signed balance movement against one account.
// Positive amounts increase the owning account's balance.
type TransactionItem struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	// AccountType snapshots the account's type at commit time so historical
	// items render correctly even after the account is deactivated.
	AccountType AccountType
	Amount      money.Amount
	Description string
	DraftStatus DraftStatus
	// ClearedByID links an outstanding item to the clearing or payment
	// transaction that settled it. Set at most once.
	ClearedByID *uuid.UUID
}

// CashEffect returns the item's effect on net cash (see AccountType.CashEffect).
func (i *TransactionItem) CashEffect() money.Amount {
	return i.AccountType.CashEffect(i.Amount)
}

// Transaction is an immutable group of balance movements. Instances are built
// through Builder; once committed only the cleared link changes.
type Transaction struct {
	ID          uuid.UUID
	BudgetID    uuid.UUID
	Type        TransactionType
	Description string
	// OccurredAt is stored timezone-agnostic (UTC); display applies the
	// budget's timezone.
	OccurredAt time.Time
	RecordedAt time.Time
	// ClearedByID is set when a later clearing transaction settled one of this
	// transaction's outstanding items. A cleared transaction cannot be deleted.
	ClearedByID *uuid.UUID
	Items       []*TransactionItem
}

// Validate re-checks the structural invariants the builder established.
// Repositories call this before writing.
func (t *Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if len(t.Items) == 0 {
		return ErrUnbalancedTransaction
	}
	for _, item := range t.Items {
		if item.Amount.IsZero() {
			return ErrInvalidAmount
		}
		if !item.DraftStatus.IsValid() {
			return ErrInvalidDraftStatus
		}
		if !item.AccountType.IsValid() {
			return ErrInvalidAccountType
		}
	}
	return nil
}

// ItemByID returns the item with the given id, if present.
func (t *Transaction) ItemByID(id uuid.UUID) (*TransactionItem, bool) {
	for _, item := range t.Items {
		if item.ID == id {
			return item, true
		}
	}
	return nil, false
}
