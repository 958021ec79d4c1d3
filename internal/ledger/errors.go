package ledger

import "errors"

// Validation errors: raised before any state mutation, safe to retry with
// corrected input.
var (
	ErrInvalidAmount         = errors.New("amount must be a nonzero value with two decimal digits")
	ErrUnbalancedTransaction = errors.New("transaction items do not balance")
	ErrInvalidDraftStatus    = errors.New("draft status not valid for this item")
	ErrDuplicateName         = errors.New("account name already exists in this budget")
	ErrNonZeroBalance        = errors.New("account balance must be zero")
	ErrBillAmountMismatch    = errors.New("covered items do not add up to the bill amount")
)

// Consistency errors: preconditions on existing state were violated, nothing
// was mutated.
var (
	ErrAlreadyCleared    = errors.New("item has already been cleared")
	ErrClearingImmutable = errors.New("clearing transactions cannot be deleted")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateID       = errors.New("account ID already exists in this budget")
	ErrAccountInactive   = errors.New("account is deactivated")
	ErrBudgetMismatch    = errors.New("account belongs to a different budget")
	ErrGeneralAccount    = errors.New("the general account cannot be removed")
	ErrGeneralExists     = errors.New("budget already has a general account")
)

// Account/transaction shape errors.
var (
	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrMissingCompanion       = errors.New("draft account has no real companion")
)

// ErrPersistenceDiverged signals that the in-memory budget was mutated but the
// backing store rejected the write. The in-memory copy is discarded and must
// be reloaded wholesale before the budget is used again.
var ErrPersistenceDiverged = errors.New("in-memory ledger diverged from storage")
