package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/pkg/money"
)

// AccountRepository implements ledger.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, budget_id, type, name, description, balance::text, is_general, companion_id, active, created_at, updated_at`

// Create inserts a new account. A name collision within the budget maps to
// ledger.ErrDuplicateName.
func (r *AccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO accounts (id, budget_id, type, name, description, balance, is_general, companion_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.BudgetID,
		string(account.Type),
		account.Name,
		account.Description,
		account.Balance.String(),
		account.General,
		account.CompanionID,
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ledger.ErrDuplicateName, account.Name)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Update writes the account's mutable fields.
func (r *AccountRepository) Update(ctx context.Context, account *ledger.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, description = $3, balance = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Name,
		account.Description,
		account.Balance.String(),
		account.Active,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ledger.ErrDuplicateName, account.Name)
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", ledger.ErrNotFound, account.ID)
	}
	return nil
}

// Deactivate soft-deletes an account, guarded by the zero-balance rule at the
// storage level as well.
func (r *AccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET active = FALSE, updated_at = now()
		WHERE id = $1 AND active AND balance = 0
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing account from a nonzero balance.
	var balance string
	err = r.pool.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1 AND active`, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: account %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	return fmt.Errorf("%w: balance is %s", ledger.ErrNonZeroBalance, balance)
}

// ListActive returns the budget's active accounts.
func (r *AccountRepository) ListActive(ctx context.Context, budgetID uuid.UUID) ([]*ledger.Account, error) {
	return r.list(ctx, budgetID, true)
}

// ListDeactivated returns the budget's soft-deleted accounts.
func (r *AccountRepository) ListDeactivated(ctx context.Context, budgetID uuid.UUID) ([]*ledger.Account, error) {
	return r.list(ctx, budgetID, false)
}

func (r *AccountRepository) list(ctx context.Context, budgetID uuid.UUID, active bool) ([]*ledger.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE budget_id = $1 AND active = $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, budgetID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// UpdateBalances writes every account's balance in a single storage
// transaction; either all rows update or none do.
func (r *AccountRepository) UpdateBalances(ctx context.Context, accounts []*ledger.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, account := range accounts {
		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`,
			account.ID, account.Balance.String(), account.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update balance for %s: %w", account.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: account %s", ledger.ErrNotFound, account.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit balance updates: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		account     ledger.Account
		accountType string
		balance     string
	)
	err := row.Scan(
		&account.ID,
		&account.BudgetID,
		&accountType,
		&account.Name,
		&account.Description,
		&balance,
		&account.General,
		&account.CompanionID,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", ledger.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.Type = ledger.AccountType(accountType)
	amount, err := money.Parse(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balance, err)
	}
	account.Balance = amount
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
