package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pbujok/budgetbook/internal/ledger"
)

// BudgetRepository implements ledger.BudgetRepository using PostgreSQL.
type BudgetRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetRepository creates a new PostgreSQL budget repository.
func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{pool: pool}
}

// CreateBudget persists the budget, its accounts (the fresh aggregate carries
// just the general account) and the owner's access grant in one transaction.
func (r *BudgetRepository) CreateBudget(ctx context.Context, budget *ledger.BudgetData, ownerID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO budgets (id, name, time_zone, analytics_start)
		VALUES ($1, $2, $3, $4)
	`, budget.ID, budget.Name, budget.TimeZone.String(), budget.AnalyticsStart)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: budget %s", ledger.ErrDuplicateID, budget.ID)
		}
		return fmt.Errorf("failed to insert budget: %w", err)
	}

	for _, account := range budget.AllAccounts() {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, budget_id, type, name, description, balance, is_general, companion_id, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, account.ID, account.BudgetID, string(account.Type), account.Name, account.Description,
			account.Balance.String(), account.General, account.CompanionID, account.Active,
			account.CreatedAt, account.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert account %q: %w", account.Name, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO budget_access (budget_id, user_id)
		VALUES ($1, $2)
	`, budget.ID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to grant owner access: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit budget: %w", err)
	}
	return nil
}

// GrantAccess gives a user access to a budget. Granting twice is a no-op.
func (r *BudgetRepository) GrantAccess(ctx context.Context, budgetID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO budget_access (budget_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (budget_id, user_id) DO NOTHING
	`, budgetID, userID)
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

// HasAccess reports whether the user may operate on the budget.
func (r *BudgetRepository) HasAccess(ctx context.Context, budgetID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM budget_access WHERE budget_id = $1 AND user_id = $2)
	`, budgetID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return exists, nil
}

// UpdateSettings writes the budget's timezone and analytics start.
func (r *BudgetRepository) UpdateSettings(ctx context.Context, budgetID uuid.UUID, timeZone string, analyticsStart time.Time) error {
	if _, err := time.LoadLocation(timeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", timeZone, err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE budgets SET time_zone = $2, analytics_start = $3 WHERE id = $1
	`, budgetID, timeZone, analyticsStart)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: budget %s", ledger.ErrNotFound, budgetID)
	}
	return nil
}

// ListForUser returns every budget the user can access.
func (r *BudgetRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]ledger.BudgetInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.name, b.time_zone, b.analytics_start
		FROM budgets b
		JOIN budget_access a ON a.budget_id = b.id
		WHERE a.user_id = $1
		ORDER BY b.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []ledger.BudgetInfo
	for rows.Next() {
		var info ledger.BudgetInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.TimeZone, &info.AnalyticsStart); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

// LoadBudget rebuilds the full in-memory aggregate from storage, active and
// deactivated accounts included. This is the sole source of session state;
// nothing is patched into a live aggregate from the database afterwards.
func (r *BudgetRepository) LoadBudget(ctx context.Context, budgetID uuid.UUID) (*ledger.BudgetData, error) {
	var (
		name           string
		tzName         string
		analyticsStart time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT name, time_zone, analytics_start FROM budgets WHERE id = $1
	`, budgetID).Scan(&name, &tzName, &analyticsStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: budget %s", ledger.ErrNotFound, budgetID)
		}
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}

	tz, err := time.LoadLocation(tzName)
	if err != nil {
		// A bad stored zone should not brick the budget.
		tz = time.UTC
	}
	data := ledger.NewBudgetData(budgetID, name, tz, analyticsStart)

	// Active accounts first so companion and general wiring resolves before
	// the deactivated remainder is indexed.
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE budget_id = $1
		ORDER BY active DESC, created_at ASC
	`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		if err := data.AddAccount(account); err != nil {
			return nil, fmt.Errorf("failed to index account %q: %w", account.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return data, nil
}
