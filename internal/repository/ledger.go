package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spin-reward-service/internal/model"
)

// LedgerRepository appends reward-ledger entries and keeps profile balances
// in sync. Entries are keyed by ticket id, so recording the same redemption
// twice credits the balance only once; the reconciler relies on this to
// replay safely.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Record appends a ledger entry for the redeemed ticket and credits the
// owner's balance, both in one transaction. If an entry for the ticket
// already exists the call is a no-op.
func (r *LedgerRepository) Record(ctx context.Context, ownerID, ticketID string, amount int64, reason string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin ledger write: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const insertQuery = `
		INSERT INTO ledger_entries (owner_id, ticket_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ticket_id) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertQuery, ownerID, ticketID, amount, reason)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	// Credit the balance only when this call actually inserted the
	// entry, so a replay does not double-credit.
	if result.RowsAffected() > 0 {
		const updateQuery = `
			UPDATE profiles
			SET balance = balance + $2, updated_at = NOW()
			WHERE owner_id = $1
		`
		if _, err := tx.Exec(ctx, updateQuery, ownerID, amount); err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger write: %w", err)
	}
	return nil
}

// GetByTicketID retrieves the ledger entry for a ticket, if any.
func (r *LedgerRepository) GetByTicketID(ctx context.Context, ticketID string) (*model.LedgerEntry, error) {
	const query = `
		SELECT id, owner_id, ticket_id, amount, reason, created_at
		FROM ledger_entries
		WHERE ticket_id = $1
	`

	var e model.LedgerEntry
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&e.ID,
		&e.OwnerID,
		&e.TicketID,
		&e.Amount,
		&e.Reason,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &e, nil
}

// GetByOwnerID retrieves an owner's ledger entries, newest first.
func (r *LedgerRepository) GetByOwnerID(ctx context.Context, ownerID string, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, owner_id, ticket_id, amount, reason, created_at
		FROM ledger_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.OwnerID,
			&e.TicketID,
			&e.Amount,
			&e.Reason,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
