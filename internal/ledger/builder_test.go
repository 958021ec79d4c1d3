package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbujok/budgetbook/pkg/money"
)

func amt(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.Parse(s)
	require.NoError(t, err)
	return a
}

func testAccount(budgetID uuid.UUID, accountType AccountType, name string) *Account {
	now := time.Now().UTC()
	a := &Account{
		ID:        uuid.New(),
		BudgetID:  budgetID,
		Type:      accountType,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if accountType == AccountTypeDraft {
		companion := uuid.New()
		a.CompanionID = &companion
	}
	return a
}

func testGeneral(budgetID uuid.UUID) *Account {
	a := testAccount(budgetID, AccountTypeCategory, "General")
	a.General = true
	return a
}

func TestBuilderExpenseFromRealAccount(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	tx, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00")).
		AddItem(checking, amt(t, "-60.00")).
		Build()
	require.NoError(t, err)

	require.Len(t, tx.Items, 2)
	assert.Equal(t, TxTypeExpense, tx.Type)
	for _, item := range tx.Items {
		assert.Equal(t, tx.ID, item.TransactionID)
		assert.Equal(t, DraftStatusNone, item.DraftStatus)
	}
}

func TestBuilderExpenseWithCheckRaisesDraftLiability(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	drafts := testAccount(budgetID, AccountTypeDraft, "Checking drafts")

	// Writing a 60.00 check: the draft balance goes up by 60 (owed), the
	// envelope goes down by 60. Cash effect of +60 on a draft is -60.
	tx, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "rent check").
		AddItem(food, amt(t, "-60.00")).
		AddItem(drafts, amt(t, "60.00")).
		Build()
	require.NoError(t, err)

	draftItem := tx.Items[1]
	assert.Equal(t, AccountTypeDraft, draftItem.AccountType)
	assert.Equal(t, DraftStatusOutstanding, draftItem.DraftStatus, "draft expense items default to outstanding")
}

func TestBuilderExpenseRejectsUnbalancedItems(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	_, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00")).
		AddItem(checking, amt(t, "-59.00")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderExpenseSplitAcrossEnvelopes(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	household := testAccount(budgetID, AccountTypeCategory, "Household")
	card := testAccount(budgetID, AccountTypeCharge, "Visa")

	// 45.00 charged: 30 food, 15 household. Charge balance rises by 45.
	tx, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "supermarket").
		AddItem(food, amt(t, "-30.00")).
		AddItem(household, amt(t, "-15.00")).
		AddItem(card, amt(t, "45.00")).
		Build()
	require.NoError(t, err)
	assert.Len(t, tx.Items, 3)
}

func TestBuilderIncomeRequiresGeneralAccount(t *testing.T) {
	budgetID := uuid.New()
	checking := testAccount(budgetID, AccountTypeReal, "Checking")
	general := testGeneral(budgetID)
	food := testAccount(budgetID, AccountTypeCategory, "Food")

	_, err := NewBuilder(budgetID, TxTypeIncome, time.Now(), "salary").
		AddItem(checking, amt(t, "500.00")).
		AddItem(general, amt(t, "500.00")).
		Build()
	assert.NoError(t, err)

	// A plain category account in place of the general one is rejected.
	_, err = NewBuilder(budgetID, TxTypeIncome, time.Now(), "salary").
		AddItem(checking, amt(t, "500.00")).
		AddItem(food, amt(t, "500.00")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderIncomeRejectsNegativeAmounts(t *testing.T) {
	budgetID := uuid.New()
	checking := testAccount(budgetID, AccountTypeReal, "Checking")
	general := testGeneral(budgetID)

	_, err := NewBuilder(budgetID, TxTypeIncome, time.Now(), "refund").
		AddItem(checking, amt(t, "-500.00")).
		AddItem(general, amt(t, "-500.00")).
		Build()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBuilderAllowanceMovesGeneralToEnvelope(t *testing.T) {
	budgetID := uuid.New()
	general := testGeneral(budgetID)
	food := testAccount(budgetID, AccountTypeCategory, "Food")

	tx, err := NewBuilder(budgetID, TxTypeAllowance, time.Now(), "monthly food budget").
		AddItem(general, amt(t, "-50.00")).
		AddItem(food, amt(t, "50.00")).
		Build()
	require.NoError(t, err)
	assert.Len(t, tx.Items, 2)
}

func TestBuilderAllowanceRejectsTwoPlainEnvelopes(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	household := testAccount(budgetID, AccountTypeCategory, "Household")

	_, err := NewBuilder(budgetID, TxTypeAllowance, time.Now(), "rebalance").
		AddItem(food, amt(t, "-50.00")).
		AddItem(household, amt(t, "50.00")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderTransferRequiresSameKind(t *testing.T) {
	budgetID := uuid.New()
	checking := testAccount(budgetID, AccountTypeReal, "Checking")
	savings := testAccount(budgetID, AccountTypeReal, "Savings")
	food := testAccount(budgetID, AccountTypeCategory, "Food")

	_, err := NewBuilder(budgetID, TxTypeTransfer, time.Now(), "to savings").
		AddItem(checking, amt(t, "-100.00")).
		AddItem(savings, amt(t, "100.00")).
		Build()
	assert.NoError(t, err)

	_, err = NewBuilder(budgetID, TxTypeTransfer, time.Now(), "nonsense").
		AddItem(checking, amt(t, "-100.00")).
		AddItem(food, amt(t, "100.00")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderClearingPairsLiabilityWithReal(t *testing.T) {
	budgetID := uuid.New()
	drafts := testAccount(budgetID, AccountTypeDraft, "Checking drafts")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	// The cleared check lowers the draft balance and the real balance by
	// the same 60.00.
	tx, err := NewBuilder(budgetID, TxTypeClearing, time.Now(), "check cleared").
		AddItem(drafts, amt(t, "-60.00")).
		AddItem(checking, amt(t, "-60.00")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, DraftStatusClearing, tx.Items[0].DraftStatus, "clearing liability items default to clearing status")
	assert.Equal(t, DraftStatusNone, tx.Items[1].DraftStatus)
}

func TestBuilderClearingRejectsMismatchedAmounts(t *testing.T) {
	budgetID := uuid.New()
	drafts := testAccount(budgetID, AccountTypeDraft, "Checking drafts")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	_, err := NewBuilder(budgetID, TxTypeClearing, time.Now(), "check cleared").
		AddItem(drafts, amt(t, "-60.00")).
		AddItem(checking, amt(t, "-59.99")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderInitialSingleAndPaired(t *testing.T) {
	budgetID := uuid.New()
	checking := testAccount(budgetID, AccountTypeReal, "Checking")
	general := testGeneral(budgetID)

	_, err := NewBuilder(budgetID, TxTypeInitial, time.Now(), "opening").
		AddItem(checking, amt(t, "1200.00")).
		Build()
	assert.NoError(t, err)

	_, err = NewBuilder(budgetID, TxTypeInitial, time.Now(), "opening").
		AddItem(checking, amt(t, "1200.00")).
		AddItem(general, amt(t, "1200.00")).
		Build()
	assert.NoError(t, err)

	_, err = NewBuilder(budgetID, TxTypeInitial, time.Now(), "opening").
		AddItem(checking, amt(t, "1200.00")).
		AddItem(general, amt(t, "1100.00")).
		Build()
	assert.ErrorIs(t, err, ErrUnbalancedTransaction)
}

func TestBuilderRejectsInactiveAccount(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")
	checking.Active = false

	_, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00")).
		AddItem(checking, amt(t, "-60.00")).
		Build()
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestBuilderRejectsForeignBudgetAccount(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	foreign := testAccount(uuid.New(), AccountTypeReal, "Checking")

	_, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00")).
		AddItem(foreign, amt(t, "-60.00")).
		Build()
	assert.ErrorIs(t, err, ErrBudgetMismatch)
}

func TestBuilderRejectsZeroAmountItem(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")

	_, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "noop").
		AddItem(food, money.Zero()).
		Build()
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBuilderRejectsDraftStatusOnCategoryItem(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	_, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00"), WithDraftStatus(DraftStatusOutstanding)).
		AddItem(checking, amt(t, "-60.00")).
		Build()
	assert.ErrorIs(t, err, ErrInvalidDraftStatus)
}

func TestBuilderItemDescriptionDefaultsToTransaction(t *testing.T) {
	budgetID := uuid.New()
	food := testAccount(budgetID, AccountTypeCategory, "Food")
	checking := testAccount(budgetID, AccountTypeReal, "Checking")

	tx, err := NewBuilder(budgetID, TxTypeExpense, time.Now(), "groceries").
		AddItem(food, amt(t, "-60.00"), WithItemDescription("weekly shop")).
		AddItem(checking, amt(t, "-60.00")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "weekly shop", tx.Items[0].Description)
	assert.Equal(t, "groceries", tx.Items[1].Description)
}
