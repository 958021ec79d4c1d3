package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BudgetData is the in-memory aggregate of every account in one budget. It is
// loaded wholesale from storage at session start, mutated in place for the
// duration of the session, and replaced wholesale on reload, never patched
// piecemeal.
//
// BudgetData itself is not safe for concurrent use; Manager serializes access
// per budget.
type BudgetData struct {
	ID             uuid.UUID
	Name           string
	TimeZone       *time.Location
	AnalyticsStart time.Time

	General    *Account
	Categories map[uuid.UUID]*Account
	Reals      map[uuid.UUID]*Account
	Charges    map[uuid.UUID]*Account
	Drafts     map[uuid.UUID]*Account

	// index covers active and deactivated accounts so historical transaction
	// items always resolve. It is kept in lockstep with the collections above.
	index map[uuid.UUID]*Account
	// names indexes active account names for the uniqueness check.
	names map[string]uuid.UUID
}

// NewBudgetData creates an empty budget aggregate.
func NewBudgetData(id uuid.UUID, name string, tz *time.Location, analyticsStart time.Time) *BudgetData {
	if tz == nil {
		tz = time.UTC
	}
	return &BudgetData{
		ID:             id,
		Name:           name,
		TimeZone:       tz,
		AnalyticsStart: analyticsStart,
		Categories:     make(map[uuid.UUID]*Account),
		Reals:          make(map[uuid.UUID]*Account),
		Charges:        make(map[uuid.UUID]*Account),
		Drafts:         make(map[uuid.UUID]*Account),
		index:          make(map[uuid.UUID]*Account),
		names:          make(map[string]uuid.UUID),
	}
}

// AddAccount inserts a new or loaded account into its collection and the id
// index. Deactivated accounts are indexed but not added to a collection.
func (b *BudgetData) AddAccount(a *Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.BudgetID != b.ID {
		return fmt.Errorf("%w: account %s", ErrBudgetMismatch, a.ID)
	}
	if _, exists := b.index[a.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
	}
	if !a.Active {
		b.index[a.ID] = a
		return nil
	}
	if _, taken := b.names[a.Name]; taken {
		return fmt.Errorf("%w: %q", ErrDuplicateName, a.Name)
	}
	if a.General {
		if b.General != nil {
			return ErrGeneralExists
		}
		b.General = a
	}

	b.collection(a.Type)[a.ID] = a
	b.index[a.ID] = a
	b.names[a.Name] = a.ID
	return nil
}

func (b *BudgetData) collection(t AccountType) map[uuid.UUID]*Account {
	switch t {
	case AccountTypeReal:
		return b.Reals
	case AccountTypeCharge:
		return b.Charges
	case AccountTypeDraft:
		return b.Drafts
	default:
		return b.Categories
	}
}

// AccountByID looks up any known account, active or deactivated.
func (b *BudgetData) AccountByID(id uuid.UUID) (*Account, bool) {
	a, ok := b.index[id]
	return a, ok
}

// AccountByName looks up an active account by name.
func (b *BudgetData) AccountByName(name string) (*Account, bool) {
	id, ok := b.names[name]
	if !ok {
		return nil, false
	}
	return b.index[id], true
}

// DraftForReal returns the draft account shadowing the given real account.
func (b *BudgetData) DraftForReal(realID uuid.UUID) (*Account, bool) {
	for _, d := range b.Drafts {
		if d.CompanionID != nil && *d.CompanionID == realID {
			return d, true
		}
	}
	return nil, false
}

// Commit applies every item's signed amount to the referenced account.
// Commit is not idempotent: applying the same transaction twice doubles its
// effect, so the caller must guarantee at-most-once application.
func (b *BudgetData) Commit(tx *Transaction) error {
	if err := b.checkItems(tx.Items); err != nil {
		return err
	}
	for _, item := range tx.Items {
		b.index[item.AccountID].Apply(item.Amount)
	}
	return nil
}

// Undo reverses a previously committed transaction by applying every item's
// negated amount.
func (b *BudgetData) Undo(tx *Transaction) error {
	return b.UndoItems(tx.Items)
}

// UndoItems reverses the balance effect of the given items. Used by deletion,
// where storage returns the removed items as balance corrections.
func (b *BudgetData) UndoItems(items []*TransactionItem) error {
	if err := b.checkItems(items); err != nil {
		return err
	}
	for _, item := range items {
		b.index[item.AccountID].Apply(item.Amount.Neg())
	}
	return nil
}

// checkItems resolves every account up front so Commit/Undo never applies a
// partial transaction.
func (b *BudgetData) checkItems(items []*TransactionItem) error {
	for _, item := range items {
		if _, ok := b.index[item.AccountID]; !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, item.AccountID)
		}
	}
	return nil
}

// Deactivate soft-deletes an account: it leaves the collections and the name
// index but stays in the id index for historical display. Only legal at a
// zero balance.
func (b *BudgetData) Deactivate(id uuid.UUID) error {
	a, ok := b.index[id]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	if a.General {
		return ErrGeneralAccount
	}
	if !a.Balance.IsZero() {
		return fmt.Errorf("%w: %q holds %s", ErrNonZeroBalance, a.Name, a.Balance)
	}
	delete(b.collection(a.Type), id)
	delete(b.names, a.Name)
	a.Active = false
	a.UpdatedAt = time.Now()
	return nil
}

// AllAccounts returns every active account, general first.
func (b *BudgetData) AllAccounts() []*Account {
	out := make([]*Account, 0, len(b.names))
	if b.General != nil {
		out = append(out, b.General)
	}
	for _, m := range []map[uuid.UUID]*Account{b.Categories, b.Reals, b.Charges, b.Drafts} {
		for _, a := range m {
			if a.General {
				continue
			}
			out = append(out, a)
		}
	}
	return out
}
