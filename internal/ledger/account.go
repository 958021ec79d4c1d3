package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/pkg/money"
)

// AccountType represents the kind of budget account.
type AccountType string

const (
	// AccountTypeCategory is an envelope account tracking planned spending.
	AccountTypeCategory AccountType = "category"
	// AccountTypeReal is an account holding actual money (checking, wallet).
	AccountTypeReal AccountType = "real"
	// AccountTypeCharge is a credit-card-style account tracking amounts owed.
	AccountTypeCharge AccountType = "charge"
	// AccountTypeDraft is a shadow account tracking checks written against a
	// real account but not yet cleared.
	AccountTypeDraft AccountType = "draft"
)

// IsValid returns true for a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeCategory, AccountTypeReal, AccountTypeCharge, AccountTypeDraft:
		return true
	}
	return false
}

// IsCategory returns true for envelope accounts (including the general account).
func (t AccountType) IsCategory() bool {
	return t == AccountTypeCategory
}

// IsMoney returns true for accounts that represent real-money positions.
func (t AccountType) IsMoney() bool {
	return t == AccountTypeReal || t == AccountTypeCharge || t == AccountTypeDraft
}

// IsLiability returns true for accounts whose positive balance means money owed
// (charges) or committed but not yet withdrawn (outstanding drafts).
func (t AccountType) IsLiability() bool {
	return t == AccountTypeCharge || t == AccountTypeDraft
}

// CashEffect converts a signed balance delta on an account of this type into
// its effect on net cash. Increasing a real balance adds cash; increasing a
// liability balance reduces it. Category accounts hold no cash.
func (t AccountType) CashEffect(amount money.Amount) money.Amount {
	switch t {
	case AccountTypeReal:
		return amount
	case AccountTypeCharge, AccountTypeDraft:
		return amount.Neg()
	default:
		return money.Zero()
	}
}

// Account is a single budget account. Identity fields (ID, BudgetID, Type) are
// immutable after creation; Name, Description and Balance change over time.
type Account struct {
	ID          uuid.UUID
	BudgetID    uuid.UUID
	Type        AccountType
	Name        string
	Description string
	Balance     money.Amount

	// General marks the distinguished category account that receives income
	// and funds allowances. Exactly one per budget.
	General bool

	// CompanionID links a draft account to the real account whose checks it
	// shadows. Stored as an id, resolved through the budget index, so neither
	// side owns the other.
	CompanionID *uuid.UUID

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the account's structural invariants.
func (a *Account) Validate() error {
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if a.Name == "" {
		return ErrInvalidAccountType
	}
	if a.General && a.Type != AccountTypeCategory {
		return ErrInvalidAccountType
	}
	if a.Type == AccountTypeDraft && a.CompanionID == nil {
		return ErrMissingCompanion
	}
	if a.Type != AccountTypeDraft && a.CompanionID != nil {
		return ErrInvalidAccountType
	}
	return nil
}

// Apply adds a signed amount to the account balance. Applying the negated
// amount restores the previous balance exactly, which transaction deletion
// relies on.
func (a *Account) Apply(amount money.Amount) {
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
}
