package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/pkg/money"
)

// Builder accumulates transaction items and validates them as a whole on
// Build. Each transaction type has its own named validation case; there is no
// single generic balancing formula, because income, allowance, initial and
// clearing all have bespoke shapes.
type Builder struct {
	budgetID    uuid.UUID
	txType      TransactionType
	occurredAt  time.Time
	description string
	items       []*TransactionItem
	general     map[uuid.UUID]bool
	err         error
}

// ItemOption customizes a single item.
type ItemOption func(*TransactionItem)

// WithItemDescription overrides the item description, which otherwise defaults
// to the transaction description.
func WithItemDescription(desc string) ItemOption {
	return func(i *TransactionItem) { i.Description = desc }
}

// WithDraftStatus overrides the item's draft status.
func WithDraftStatus(status DraftStatus) ItemOption {
	return func(i *TransactionItem) { i.DraftStatus = status }
}

// NewBuilder starts a transaction of the given type.
func NewBuilder(budgetID uuid.UUID, txType TransactionType, occurredAt time.Time, description string) *Builder {
	b := &Builder{
		budgetID:    budgetID,
		txType:      txType,
		occurredAt:  occurredAt.UTC(),
		description: description,
		general:     make(map[uuid.UUID]bool),
	}
	if !txType.IsValid() {
		b.err = fmt.Errorf("%w: %q", ErrInvalidTransactionType, txType)
	}
	return b
}

// AddItem records a signed balance movement against the account. Draft and
// charge items default to the status implied by the transaction type:
// outstanding for expenses, clearing for clearing transactions.
func (b *Builder) AddItem(account *Account, amount money.Amount, opts ...ItemOption) *Builder {
	if b.err != nil {
		return b
	}
	if account == nil {
		b.err = fmt.Errorf("%w: nil account", ErrNotFound)
		return b
	}
	if account.BudgetID != b.budgetID {
		b.err = fmt.Errorf("%w: account %s", ErrBudgetMismatch, account.ID)
		return b
	}
	if !account.Active {
		b.err = fmt.Errorf("%w: %s", ErrAccountInactive, account.Name)
		return b
	}

	item := &TransactionItem{
		ID:          uuid.New(),
		AccountID:   account.ID,
		AccountType: account.Type,
		Amount:      amount,
		Description: b.description,
		DraftStatus: b.defaultStatus(account.Type),
	}
	for _, opt := range opts {
		opt(item)
	}
	if account.General {
		b.general[item.ID] = true
	}
	b.items = append(b.items, item)
	return b
}

func (b *Builder) defaultStatus(t AccountType) DraftStatus {
	if !t.IsLiability() {
		return DraftStatusNone
	}
	if b.txType == TxTypeClearing {
		return DraftStatusClearing
	}
	return DraftStatusOutstanding
}

// Build validates the accumulated items and freezes them into a Transaction.
func (b *Builder) Build() (*Transaction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrUnbalancedTransaction)
	}

	for _, item := range b.items {
		if item.Amount.IsZero() {
			return nil, fmt.Errorf("%w: zero amount for account %s", ErrInvalidAmount, item.AccountID)
		}
		if !item.AccountType.IsLiability() && item.DraftStatus != DraftStatusNone {
			return nil, fmt.Errorf("%w: %s items cannot carry %q", ErrInvalidDraftStatus, item.AccountType, item.DraftStatus)
		}
		if item.AccountType.IsLiability() && item.DraftStatus == DraftStatusNone {
			return nil, fmt.Errorf("%w: %s items need a draft status", ErrInvalidDraftStatus, item.AccountType)
		}
	}

	var validate func() error
	switch b.txType {
	case TxTypeInitial:
		validate = b.validateInitial
	case TxTypeIncome:
		validate = b.validateIncome
	case TxTypeAllowance:
		validate = b.validateAllowance
	case TxTypeTransfer:
		validate = b.validateTransfer
	case TxTypeClearing:
		validate = b.validateClearing
	case TxTypeExpense:
		validate = b.validateExpense
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransactionType, b.txType)
	}
	if err := validate(); err != nil {
		return nil, err
	}

	tx := &Transaction{
		ID:          uuid.New(),
		BudgetID:    b.budgetID,
		Type:        b.txType,
		Description: b.description,
		OccurredAt:  b.occurredAt,
		RecordedAt:  time.Now().UTC(),
		Items:       b.items,
	}
	for _, item := range tx.Items {
		item.TransactionID = tx.ID
	}
	b.items = nil
	return tx, nil
}

// categorySplit partitions the items into category-side and money-side.
func (b *Builder) categorySplit() (category, moneySide []*TransactionItem) {
	for _, item := range b.items {
		if item.AccountType.IsCategory() {
			category = append(category, item)
		} else {
			moneySide = append(moneySide, item)
		}
	}
	return category, moneySide
}

// cashDelta sums the net-cash effect of the money-side items.
func cashDelta(items []*TransactionItem) money.Amount {
	total := money.Zero()
	for _, item := range items {
		total = total.Add(item.CashEffect())
	}
	return total
}

func amountSum(items []*TransactionItem) money.Amount {
	total := money.Zero()
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// validateInitial accepts a single opening-balance item, or the canonical pair
// of one real item and one general item carrying equal amounts so that money
// and the unallocated pool enter together.
func (b *Builder) validateInitial() error {
	switch len(b.items) {
	case 1:
		item := b.items[0]
		if item.AccountType != AccountTypeReal && !item.AccountType.IsCategory() {
			return fmt.Errorf("%w: initial balance must target a real or category account", ErrUnbalancedTransaction)
		}
		return nil
	case 2:
		real := b.findMoney(AccountTypeReal)
		category, _ := b.categorySplit()
		if real == nil || len(category) != 1 || !b.general[category[0].ID] {
			return fmt.Errorf("%w: initial pair must be one real and one general item", ErrUnbalancedTransaction)
		}
		if !real.Amount.Equal(category[0].Amount) {
			return fmt.Errorf("%w: initial amounts %s and %s differ", ErrUnbalancedTransaction, real.Amount, category[0].Amount)
		}
		return nil
	default:
		return fmt.Errorf("%w: initial takes one or two items", ErrUnbalancedTransaction)
	}
}

// validateIncome requires one positive real item and one positive general item
// of equal amount: money arrives and the unallocated pool grows with it.
func (b *Builder) validateIncome() error {
	if len(b.items) != 2 {
		return fmt.Errorf("%w: income takes exactly two items", ErrUnbalancedTransaction)
	}
	real := b.findMoney(AccountTypeReal)
	category, _ := b.categorySplit()
	if real == nil || len(category) != 1 || !b.general[category[0].ID] {
		return fmt.Errorf("%w: income needs one real and one general item", ErrUnbalancedTransaction)
	}
	if !real.Amount.IsPositive() || !category[0].Amount.IsPositive() {
		return fmt.Errorf("%w: income amounts must be positive", ErrInvalidAmount)
	}
	if !real.Amount.Equal(category[0].Amount) {
		return fmt.Errorf("%w: income amounts %s and %s differ", ErrUnbalancedTransaction, real.Amount, category[0].Amount)
	}
	return nil
}

// validateAllowance requires two category items netting to zero: the general
// account funds a specific envelope (or takes funds back).
func (b *Builder) validateAllowance() error {
	category, moneySide := b.categorySplit()
	if len(moneySide) != 0 || len(category) != 2 {
		return fmt.Errorf("%w: allowance moves funds between two category accounts", ErrUnbalancedTransaction)
	}
	generals := 0
	for _, item := range category {
		if b.general[item.ID] {
			generals++
		}
	}
	if generals != 1 {
		return fmt.Errorf("%w: allowance pairs the general account with one envelope", ErrUnbalancedTransaction)
	}
	if !amountSum(category).IsZero() {
		return fmt.Errorf("%w: allowance amounts must be equal and opposite", ErrUnbalancedTransaction)
	}
	return nil
}

// validateTransfer requires two items of commensurable kind, equal and
// opposite: category to category, or real to real.
func (b *Builder) validateTransfer() error {
	if len(b.items) != 2 {
		return fmt.Errorf("%w: transfer takes exactly two items", ErrUnbalancedTransaction)
	}
	a, c := b.items[0], b.items[1]
	sameKind := (a.AccountType.IsCategory() && c.AccountType.IsCategory()) ||
		(a.AccountType == AccountTypeReal && c.AccountType == AccountTypeReal)
	if !sameKind {
		return fmt.Errorf("%w: transfer accounts must be of the same kind", ErrUnbalancedTransaction)
	}
	if !amountSum(b.items).IsZero() {
		return fmt.Errorf("%w: transfer amounts must be equal and opposite", ErrUnbalancedTransaction)
	}
	return nil
}

// validateClearing requires one draft-or-charge item carrying the clearing
// status and one real item, both moving by the same amount. The liability
// shrinks as the real money leaves, so net cash is unchanged.
func (b *Builder) validateClearing() error {
	if len(b.items) != 2 {
		return fmt.Errorf("%w: clearing takes exactly two items", ErrUnbalancedTransaction)
	}
	liability := b.findLiability()
	real := b.findMoney(AccountTypeReal)
	if liability == nil || real == nil {
		return fmt.Errorf("%w: clearing pairs a draft or charge item with a real item", ErrUnbalancedTransaction)
	}
	if liability.DraftStatus != DraftStatusClearing {
		return fmt.Errorf("%w: clearing item must carry %q", ErrInvalidDraftStatus, DraftStatusClearing)
	}
	if !liability.Amount.Equal(real.Amount) {
		return fmt.Errorf("%w: clearing amounts %s and %s differ", ErrUnbalancedTransaction, liability.Amount, real.Amount)
	}
	return nil
}

// validateExpense enforces money conservation: the net-cash effect of the
// money-side items must equal the total category movement. Paying 60.00 from
// checking lowers the food envelope by 60.00; writing a 60.00 check raises the
// draft liability instead, with the same envelope effect.
func (b *Builder) validateExpense() error {
	category, moneySide := b.categorySplit()
	if len(category) == 0 || len(moneySide) == 0 {
		return fmt.Errorf("%w: expense needs a category side and a money side", ErrUnbalancedTransaction)
	}
	for _, item := range moneySide {
		if item.AccountType.IsLiability() && item.DraftStatus != DraftStatusOutstanding {
			return fmt.Errorf("%w: expense %s items must be %q", ErrInvalidDraftStatus, item.AccountType, DraftStatusOutstanding)
		}
	}
	cash := cashDelta(moneySide)
	envelopes := amountSum(category)
	if !cash.Equal(envelopes) {
		return fmt.Errorf("%w: cash effect %s does not match category movement %s", ErrUnbalancedTransaction, cash, envelopes)
	}
	return nil
}

func (b *Builder) findMoney(t AccountType) *TransactionItem {
	for _, item := range b.items {
		if item.AccountType == t {
			return item
		}
	}
	return nil
}

func (b *Builder) findLiability() *TransactionItem {
	for _, item := range b.items {
		if item.AccountType.IsLiability() {
			return item
		}
	}
	return nil
}
