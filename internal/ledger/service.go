package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbujok/budgetbook/pkg/logger"
	"github.com/pbujok/budgetbook/pkg/money"
)

// SummaryCache caches budget balance snapshots. Implementations are
// best-effort: the service logs cache failures but never fails an operation
// over them.
type SummaryCache interface {
	Get(ctx context.Context, budgetID uuid.UUID) (*BudgetSummary, bool, error)
	Set(ctx context.Context, budgetID uuid.UUID, summary *BudgetSummary) error
	Invalidate(ctx context.Context, budgetID uuid.UUID) error
}

// BudgetSummary is a point-in-time snapshot of a budget's balances.
type BudgetSummary struct {
	BudgetID    uuid.UUID        `json:"budget_id"`
	Name        string           `json:"name"`
	TimeZone    string           `json:"time_zone"`
	Accounts    []AccountSummary `json:"accounts"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// AccountSummary is one account's slice of a budget summary.
type AccountSummary struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Type    AccountType  `json:"type"`
	General bool         `json:"general,omitempty"`
	Balance money.Amount `json:"balance"`
}

// ItemInput describes one requested balance movement when recording a
// transaction through the service boundary.
type ItemInput struct {
	AccountID   uuid.UUID
	Amount      money.Amount
	Description string
	DraftStatus *DraftStatus
}

// PayBillInput describes a credit-card bill payment.
type PayBillInput struct {
	ChargeAccountID uuid.UUID
	PayingRealID    uuid.UUID
	Amount          money.Amount
	CoveredItemIDs  []uuid.UUID
	OccurredAt      time.Time
	Description     string
}

// Service coordinates in-memory budget state with the persistence boundary.
// Transaction commits apply to memory first and persist second; a persistence
// failure therefore surfaces ErrPersistenceDiverged and the budget is dropped
// for wholesale reload (see Manager). Account creation persists first so a
// storage rejection leaves memory untouched.
type Service struct {
	accounts AccountRepository
	txns     TransactionRepository
	budgets  BudgetRepository
	manager  *Manager
	cache    SummaryCache
	log      *logger.Logger
}

// NewService creates the ledger service. cache may be nil.
func NewService(
	accounts AccountRepository,
	txns TransactionRepository,
	budgets BudgetRepository,
	manager *Manager,
	cache SummaryCache,
	log *logger.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		txns:     txns,
		budgets:  budgets,
		manager:  manager,
		cache:    cache,
		log:      log.WithField("component", "ledger"),
	}
}

// CreateBudget provisions a fresh budget with its general account and caches
// the aggregate for the session.
func (s *Service) CreateBudget(ctx context.Context, ownerID uuid.UUID, name, timeZone string) (*BudgetData, error) {
	loc := time.UTC
	if timeZone != "" {
		parsed, err := time.LoadLocation(timeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
		}
		loc = parsed
	}

	now := time.Now().UTC()
	b := NewBudgetData(uuid.New(), name, loc, now)
	general := &Account{
		ID:          uuid.New(),
		BudgetID:    b.ID,
		Type:        AccountTypeCategory,
		Name:        "General",
		Description: "Unallocated funds",
		General:     true,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.AddAccount(general); err != nil {
		return nil, err
	}

	if err := s.budgets.CreateBudget(ctx, b, ownerID); err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}
	s.manager.Put(b)
	s.log.Info("budget created", "budget_id", b.ID, "name", name)
	return b, nil
}

// ListBudgets returns the budgets the user can access.
func (s *Service) ListBudgets(ctx context.Context, userID uuid.UUID) ([]BudgetInfo, error) {
	return s.budgets.ListForUser(ctx, userID)
}

// HasAccess reports whether the user may operate on the budget.
func (s *Service) HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error) {
	return s.budgets.HasAccess(ctx, budgetID, userID)
}

// UpdateSettings changes the budget's timezone and analytics start.
func (s *Service) UpdateSettings(ctx context.Context, budgetID uuid.UUID, timeZone string, analyticsStart time.Time) error {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return fmt.Errorf("invalid time zone %q: %w", timeZone, err)
	}
	return s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		if err := s.budgets.UpdateSettings(ctx, budgetID, timeZone, analyticsStart); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		b.TimeZone = loc
		b.AnalyticsStart = analyticsStart
		return nil
	})
}

// CreateCategoryAccount creates an envelope account.
func (s *Service) CreateCategoryAccount(ctx context.Context, budgetID uuid.UUID, name, description string) (*Account, error) {
	var created *Account
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		a, err := s.createAccount(ctx, b, AccountTypeCategory, name, description, nil)
		created = a
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return created, nil
}

// CreateChargeAccount creates a credit-card-style account.
func (s *Service) CreateChargeAccount(ctx context.Context, budgetID uuid.UUID, name, description string) (*Account, error) {
	var created *Account
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		a, err := s.createAccount(ctx, b, AccountTypeCharge, name, description, nil)
		created = a
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return created, nil
}

// CreateRealAccount creates a real account, optionally with a draft companion
// for check writing, and records the opening balance as an initial
// transaction when one is given.
func (s *Service) CreateRealAccount(
	ctx context.Context,
	budgetID uuid.UUID,
	name, description string,
	initialBalance money.Amount,
	withDraftCompanion bool,
) (*Account, error) {
	var created *Account
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		real, err := s.createAccount(ctx, b, AccountTypeReal, name, description, nil)
		if err != nil {
			return err
		}
		created = real

		if withDraftCompanion {
			draftName := name + " drafts"
			if _, err := s.createAccount(ctx, b, AccountTypeDraft, draftName, "Outstanding checks for "+name, &real.ID); err != nil {
				return err
			}
		}

		if initialBalance.IsZero() {
			return nil
		}
		if b.General == nil {
			return fmt.Errorf("%w: budget has no general account", ErrNotFound)
		}
		tx, err := NewBuilder(budgetID, TxTypeInitial, time.Now(), "Initial balance for "+name).
			AddItem(real, initialBalance).
			AddItem(b.General, initialBalance).
			Build()
		if err != nil {
			return err
		}
		return s.commit(ctx, b, tx)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return created, nil
}

// createAccount persists first (the store enforces name uniqueness too) and
// only then inserts into the in-memory aggregate, so a rejected create leaves
// memory untouched.
func (s *Service) createAccount(
	ctx context.Context,
	b *BudgetData,
	accountType AccountType,
	name, description string,
	companionID *uuid.UUID,
) (*Account, error) {
	if _, taken := b.AccountByName(name); taken {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	now := time.Now().UTC()
	a := &Account{
		ID:          uuid.New(),
		BudgetID:    b.ID,
		Type:        accountType,
		Name:        name,
		Description: description,
		CompanionID: companionID,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("persist account %q: %w", name, err)
	}
	if err := b.AddAccount(a); err != nil {
		return nil, err
	}
	s.log.Info("account created", "budget_id", b.ID, "account_id", a.ID, "type", accountType, "name", name)
	return a, nil
}

// RecordTransaction builds, validates, applies and persists a transaction.
func (s *Service) RecordTransaction(
	ctx context.Context,
	budgetID uuid.UUID,
	txType TransactionType,
	occurredAt time.Time,
	description string,
	items []ItemInput,
) (*Transaction, error) {
	var tx *Transaction
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		builder := NewBuilder(budgetID, txType, occurredAt, description)
		for _, in := range items {
			account, ok := b.AccountByID(in.AccountID)
			if !ok {
				return fmt.Errorf("%w: account %s", ErrNotFound, in.AccountID)
			}
			var opts []ItemOption
			if in.Description != "" {
				opts = append(opts, WithItemDescription(in.Description))
			}
			if in.DraftStatus != nil {
				opts = append(opts, WithDraftStatus(*in.DraftStatus))
			}
			builder.AddItem(account, in.Amount, opts...)
		}
		built, err := builder.Build()
		if err != nil {
			return err
		}
		tx = built
		return s.commit(ctx, b, tx)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return tx, nil
}

// commit applies the transaction to the in-memory budget first and persists
// second. A persistence failure after the in-memory application is a
// divergence: the error wraps ErrPersistenceDiverged and the manager drops
// the budget for reload.
func (s *Service) commit(ctx context.Context, b *BudgetData, tx *Transaction) error {
	if err := b.Commit(tx); err != nil {
		return err
	}
	if err := s.txns.Create(ctx, tx); err != nil {
		s.log.Error("transaction persist failed after in-memory commit",
			"budget_id", b.ID, "transaction_id", tx.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistenceDiverged, err)
	}
	return nil
}

// DeleteTransaction removes a transaction and reverses its balance effects.
// Deletion is refused once a clearing transaction references it.
func (s *Service) DeleteTransaction(ctx context.Context, budgetID, txID uuid.UUID) error {
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		tx, err := s.txns.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx.BudgetID != budgetID {
			return fmt.Errorf("%w: transaction %s", ErrNotFound, txID)
		}
		if tx.ClearedByID != nil {
			return fmt.Errorf("%w: transaction %s", ErrAlreadyCleared, txID)
		}
		// Clearing and payment transactions settle outstanding items; removing
		// one would restore the liability balance while the settled items stay
		// cleared, with no way to settle them again.
		if tx.Type == TxTypeClearing {
			return fmt.Errorf("%w: transaction %s", ErrClearingImmutable, txID)
		}
		for _, item := range tx.Items {
			if item.DraftStatus == DraftStatusCleared {
				return fmt.Errorf("%w: item %s", ErrAlreadyCleared, item.ID)
			}
		}

		// Persist-first: storage deletes and returns the balance corrections;
		// only then is the in-memory state touched.
		items, err := s.txns.Delete(ctx, txID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if err := b.UndoItems(items); err != nil {
			// Storage deleted but memory could not reverse: diverged.
			return fmt.Errorf("%w: %v", ErrPersistenceDiverged, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateSummary(ctx, budgetID)
	return nil
}

// ClearDraftItem settles one outstanding check: it builds the two-item
// clearing transaction (draft side with clearing status, companion real
// side), commits it, and has storage atomically mark and link the original
// item.
func (s *Service) ClearDraftItem(ctx context.Context, budgetID, itemID uuid.UUID, clearingAt time.Time) (*Transaction, error) {
	var clearing *Transaction
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		item, err := s.txns.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.DraftStatus != DraftStatusOutstanding {
			return fmt.Errorf("%w: item %s is %q", ErrAlreadyCleared, itemID, item.DraftStatus)
		}
		draft, ok := b.AccountByID(item.AccountID)
		if !ok || draft.Type != AccountTypeDraft {
			return fmt.Errorf("%w: item %s is not a draft item", ErrInvalidDraftStatus, itemID)
		}
		if draft.CompanionID == nil {
			return fmt.Errorf("%w: draft %s", ErrMissingCompanion, draft.ID)
		}
		real, ok := b.AccountByID(*draft.CompanionID)
		if !ok {
			return fmt.Errorf("%w: companion %s", ErrNotFound, *draft.CompanionID)
		}

		// The outstanding item raised the draft balance; clearing lowers it
		// and withdraws the same amount from the companion real account.
		amount := item.Amount.Neg()
		tx, err := NewBuilder(budgetID, TxTypeClearing, clearingAt, "Clear check: "+item.Description).
			AddItem(draft, amount, WithDraftStatus(DraftStatusClearing)).
			AddItem(real, amount).
			Build()
		if err != nil {
			return err
		}

		if err := b.Commit(tx); err != nil {
			return err
		}
		if err := s.txns.CreateClearing(ctx, tx, itemID); err != nil {
			s.log.Error("clearing persist failed after in-memory commit",
				"budget_id", budgetID, "item_id", itemID, "error", err)
			return fmt.Errorf("%w: %v", ErrPersistenceDiverged, err)
		}
		clearing = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return clearing, nil
}

// PayCreditCardBill commits a payment transaction covering a set of
// outstanding charge items. The covered items must add up to the stated bill
// amount exactly.
func (s *Service) PayCreditCardBill(ctx context.Context, budgetID uuid.UUID, input PayBillInput) (*Transaction, error) {
	var payment *Transaction
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		charge, ok := b.AccountByID(input.ChargeAccountID)
		if !ok || charge.Type != AccountTypeCharge {
			return fmt.Errorf("%w: charge account %s", ErrNotFound, input.ChargeAccountID)
		}
		real, ok := b.AccountByID(input.PayingRealID)
		if !ok || real.Type != AccountTypeReal {
			return fmt.Errorf("%w: real account %s", ErrNotFound, input.PayingRealID)
		}
		if !input.Amount.IsPositive() {
			return fmt.Errorf("%w: bill amount must be positive", ErrInvalidAmount)
		}

		covered := money.Zero()
		for _, id := range input.CoveredItemIDs {
			item, err := s.txns.GetItem(ctx, id)
			if err != nil {
				return err
			}
			if item.AccountID != charge.ID {
				return fmt.Errorf("%w: item %s does not belong to account %s", ErrNotFound, id, charge.ID)
			}
			if item.DraftStatus != DraftStatusOutstanding {
				return fmt.Errorf("%w: item %s is %q", ErrAlreadyCleared, id, item.DraftStatus)
			}
			covered = covered.Add(item.Amount)
		}
		if !covered.Equal(input.Amount) {
			return fmt.Errorf("%w: covered %s, bill %s", ErrBillAmountMismatch, covered, input.Amount)
		}

		description := input.Description
		if description == "" {
			description = "Pay " + charge.Name + " bill"
		}
		tx, err := NewBuilder(budgetID, TxTypeClearing, input.OccurredAt, description).
			AddItem(charge, input.Amount.Neg(), WithDraftStatus(DraftStatusClearing)).
			AddItem(real, input.Amount.Neg()).
			Build()
		if err != nil {
			return err
		}

		if err := b.Commit(tx); err != nil {
			return err
		}
		if err := s.txns.CreatePayment(ctx, tx, input.CoveredItemIDs); err != nil {
			s.log.Error("payment persist failed after in-memory commit",
				"budget_id", budgetID, "charge_account", charge.ID, "error", err)
			return fmt.Errorf("%w: %v", ErrPersistenceDiverged, err)
		}
		payment = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, budgetID)
	return payment, nil
}

// DeactivateAccount soft-deletes a zero-balance account, persist-first.
func (s *Service) DeactivateAccount(ctx context.Context, budgetID, accountID uuid.UUID) error {
	err := s.manager.Write(ctx, budgetID, func(b *BudgetData) error {
		a, ok := b.AccountByID(accountID)
		if !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		if a.General {
			return ErrGeneralAccount
		}
		if !a.Balance.IsZero() {
			return fmt.Errorf("%w: %q holds %s", ErrNonZeroBalance, a.Name, a.Balance)
		}
		if err := s.accounts.Deactivate(ctx, accountID); err != nil {
			return fmt.Errorf("deactivate account: %w", err)
		}
		return b.Deactivate(accountID)
	})
	if err != nil {
		return err
	}
	s.invalidateSummary(ctx, budgetID)
	return nil
}

// ListAccountTransactions pages through an account's item history. The read
// lock keeps the listing from interleaving with a concurrent commit on the
// same budget.
func (s *Service) ListAccountTransactions(ctx context.Context, budgetID, accountID uuid.UUID, filter ItemFilter) (*ItemPage, error) {
	var page *ItemPage
	err := s.manager.Read(ctx, budgetID, func(b *BudgetData) error {
		if _, ok := b.AccountByID(accountID); !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		p, err := s.txns.ListItemsForAccount(ctx, accountID, filter)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetSummary returns the budget's balance snapshot, reading through the
// summary cache when one is configured.
func (s *Service) GetSummary(ctx context.Context, budgetID uuid.UUID) (*BudgetSummary, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, budgetID)
		if err != nil {
			s.log.Warn("summary cache read failed", "budget_id", budgetID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	var summary *BudgetSummary
	err := s.manager.Read(ctx, budgetID, func(b *BudgetData) error {
		summary = &BudgetSummary{
			BudgetID:    b.ID,
			Name:        b.Name,
			TimeZone:    b.TimeZone.String(),
			GeneratedAt: time.Now().UTC(),
		}
		for _, a := range b.AllAccounts() {
			summary.Accounts = append(summary.Accounts, AccountSummary{
				ID:      a.ID,
				Name:    a.Name,
				Type:    a.Type,
				General: a.General,
				Balance: a.Balance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, budgetID, summary); err != nil {
			s.log.Warn("summary cache write failed", "budget_id", budgetID, "error", err)
		}
	}
	return summary, nil
}

func (s *Service) invalidateSummary(ctx context.Context, budgetID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, budgetID); err != nil {
		s.log.Warn("summary cache invalidation failed", "budget_id", budgetID, "error", err)
	}
}
