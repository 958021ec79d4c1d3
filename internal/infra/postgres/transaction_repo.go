package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/pkg/money"
)

// TransactionRepository implements ledger.TransactionRepository using
// PostgreSQL. Every mutating method keeps the stored account balances in step
// with the transaction rows inside a single database transaction.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts the transaction with all its items and applies each item's
// amount to the stored account balance.
func (r *TransactionRepository) Create(ctx context.Context, txn *ledger.Transaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes the transaction and its items, reverses the items' effect on
// stored balances, and returns the removed items for the in-memory undo.
func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) ([]*ledger.TransactionItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	items, err := queryItems(ctx, tx, `
		SELECT id, transaction_id, account_id, account_type, amount::text, description, draft_status, cleared_by
		FROM transaction_items
		WHERE transaction_id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = balance - $2, updated_at = now() WHERE id = $1`,
			item.AccountID, item.Amount.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reverse balance for account %s: %w", item.AccountID, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return items, nil
}

// GetByID loads a transaction with all its items.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var (
		txn     ledger.Transaction
		txnType string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, budget_id, type, description, occurred_at, recorded_at, cleared_by
		FROM transactions
		WHERE id = $1
	`, id).Scan(&txn.ID, &txn.BudgetID, &txnType, &txn.Description, &txn.OccurredAt, &txn.RecordedAt, &txn.ClearedByID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.Type = ledger.TransactionType(txnType)

	items, err := queryItems(ctx, r.pool, `
		SELECT id, transaction_id, account_id, account_type, amount::text, description, draft_status, cleared_by
		FROM transaction_items
		WHERE transaction_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	txn.Items = items
	return &txn, nil
}

// GetItem loads a single transaction item.
func (r *TransactionRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*ledger.TransactionItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		SELECT id, transaction_id, account_id, account_type, amount::text, description, draft_status, cleared_by
		FROM transaction_items
		WHERE id = $1
	`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item %s", ledger.ErrNotFound, itemID)
		}
		return nil, err
	}
	return item, nil
}

// ListItemsForAccount returns one page of the account's history, newest first.
func (r *TransactionRepository) ListItemsForAccount(ctx context.Context, accountID uuid.UUID, filter ledger.ItemFilter) (*ledger.ItemPage, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := `i.account_id = $1`
	args := []any{accountID}
	if filter.Type != nil {
		where += ` AND t.type = $2`
		args = append(args, string(*filter.Type))
	}

	var total int
	countQuery := `
		SELECT count(*)
		FROM transaction_items i
		JOIN transactions t ON t.id = i.transaction_id
		WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT i.id, i.transaction_id, t.type, t.description, t.occurred_at, i.amount::text, i.draft_status, i.cleared_by
		FROM transaction_items i
		JOIN transactions t ON t.id = i.transaction_id
		WHERE %s
		ORDER BY t.occurred_at DESC, t.recorded_at DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	page := &ledger.ItemPage{Total: total, Limit: limit, Offset: offset}
	for rows.Next() {
		var (
			view    ledger.ItemView
			txnType string
			amount  string
			status  string
		)
		err := rows.Scan(&view.ItemID, &view.TransactionID, &txnType, &view.Description,
			&view.OccurredAt, &amount, &status, &view.ClearedByID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		view.Type = ledger.TransactionType(txnType)
		view.DraftStatus = ledger.DraftStatus(status)
		view.Amount, err = money.Parse(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		page.Items = append(page.Items, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return page, nil
}

// CreateClearing records the clearing transaction and settles the cleared
// item in the same database transaction. A concurrent clearing of the same
// item loses the race and gets ledger.ErrAlreadyCleared.
func (r *TransactionRepository) CreateClearing(ctx context.Context, clearing *ledger.Transaction, clearedItemID uuid.UUID) error {
	if err := clearing.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTransaction(ctx, tx, clearing); err != nil {
		return err
	}
	if err := settleItems(ctx, tx, clearing.ID, []uuid.UUID{clearedItemID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit clearing: %w", err)
	}
	return nil
}

// CreatePayment records a credit-card payment and settles every covered item
// atomically.
func (r *TransactionRepository) CreatePayment(ctx context.Context, payment *ledger.Transaction, coveredItemIDs []uuid.UUID) error {
	if err := payment.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTransaction(ctx, tx, payment); err != nil {
		return err
	}
	if err := settleItems(ctx, tx, payment.ID, coveredItemIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}
	return nil
}

// insertTransaction writes the header, the items and the balance deltas.
func insertTransaction(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, budget_id, type, description, occurred_at, recorded_at, cleared_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, txn.ID, txn.BudgetID, string(txn.Type), txn.Description, txn.OccurredAt, txn.RecordedAt, txn.ClearedByID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, txn.ID)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, item := range txn.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_items (id, transaction_id, account_id, account_type, amount, description, draft_status, cleared_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, txn.ID, item.AccountID, string(item.AccountType), item.Amount.String(),
			item.Description, string(item.DraftStatus), item.ClearedByID)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $2, updated_at = now() WHERE id = $1`,
			item.AccountID, item.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to apply balance for account %s: %w", item.AccountID, err)
		}
	}
	return nil
}

// settleItems marks outstanding items cleared, links them and their owning
// transactions to the settling transaction, and fails if any item is not in
// the outstanding state.
func settleItems(ctx context.Context, tx pgx.Tx, settledByID uuid.UUID, itemIDs []uuid.UUID) error {
	for _, itemID := range itemIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE transaction_items
			SET draft_status = 'cleared', cleared_by = $2
			WHERE id = $1 AND draft_status = 'outstanding'
		`, itemID, settledByID)
		if err != nil {
			return fmt.Errorf("failed to settle item %s: %w", itemID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: item %s", ledger.ErrAlreadyCleared, itemID)
		}

		_, err = tx.Exec(ctx, `
			UPDATE transactions
			SET cleared_by = $2
			WHERE id = (SELECT transaction_id FROM transaction_items WHERE id = $1)
		`, itemID, settledByID)
		if err != nil {
			return fmt.Errorf("failed to link transaction for item %s: %w", itemID, err)
		}
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]*ledger.TransactionItem, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*ledger.TransactionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

func scanItem(row rowScanner) (*ledger.TransactionItem, error) {
	var (
		item        ledger.TransactionItem
		accountType string
		amount      string
		status      string
	)
	err := row.Scan(&item.ID, &item.TransactionID, &item.AccountID, &accountType,
		&amount, &item.Description, &status, &item.ClearedByID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	item.AccountType = ledger.AccountType(accountType)
	item.DraftStatus = ledger.DraftStatus(status)
	item.Amount, err = money.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	return &item, nil
}
