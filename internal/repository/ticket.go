// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spin-reward-service/internal/model"
)

// Common errors for repository operations.
var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// TicketRepository handles ticket persistence, including the transactional
// redemption step. It is the only component that mutates ticket status.
type TicketRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewTicketRepository creates a new TicketRepository instance. loc is the
// issuance timezone used for day-scoped validity checks.
func NewTicketRepository(pool *pgxpool.Pool, loc *time.Location) *TicketRepository {
	return &TicketRepository{pool: pool, loc: loc}
}

const ticketColumns = `id, owner_id, context, date_key, status, prize, created_at, used_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Context,
		&t.DateKey,
		&t.Status,
		&t.Prize,
		&t.CreatedAt,
		&t.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Issue creates a pending ticket for owner earned through context, scoped
// to the current day. The ticket id is derived from owner, context and day,
// and the insert ignores conflicts, so issuing the same ticket twice is a
// no-op. The existing or newly created ticket is returned either way.
func (r *TicketRepository) Issue(ctx context.Context, ownerID, contextRef string) (*model.Ticket, error) {
	dateKey := model.DateKey(time.Now(), r.loc)
	id := model.TicketID(ownerID, contextRef, dateKey)

	const query = `
		INSERT INTO tickets (id, owner_id, context, date_key, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, id, ownerID, contextRef, dateKey); err != nil {
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a ticket by id.
// Returns ErrTicketNotFound if the ticket does not exist.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// Redeem performs the redemption state transition as a single database
// transaction: it locks the ticket row and the owner's profile row, runs
// the validation checks, draws a prize, and marks the ticket used. Either
// everything commits or nothing is written; there is no state where the
// ticket is used without a prize or holds a prize while still pending.
//
// Validation failures (ownership, already used, expired) and ErrTicketNotFound
// are terminal. Any other error is an infrastructure failure the caller may
// retry; Redeem itself never retries.
func (r *TicketRepository) Redeem(ctx context.Context, ownerID, ticketID string, draw func() int64, now time.Time) (*model.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin redemption: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const ticketQuery = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	t, err := scanTicket(tx.QueryRow(ctx, ticketQuery, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to read ticket: %w", err)
	}

	// The profile row is read under the same transaction so the later
	// ledger credit applies to the state the redemption was decided on.
	const profileQuery = `SELECT owner_id FROM profiles WHERE owner_id = $1 FOR UPDATE`
	var profileID string
	if err := tx.QueryRow(ctx, profileQuery, ownerID).Scan(&profileID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := model.ValidateForRedemption(t, ownerID, now, r.loc); err != nil {
		return nil, err
	}

	prizeValue := draw()

	const updateQuery = `
		UPDATE tickets
		SET status = 'used', prize = $2, used_at = $3
		WHERE id = $1
		RETURNING ` + ticketColumns
	updated, err := scanTicket(tx.QueryRow(ctx, updateQuery, ticketID, prizeValue, now))
	if err != nil {
		return nil, fmt.Errorf("failed to mark ticket used: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	return updated, nil
}

// ListUnledgered retrieves used tickets that have no corresponding ledger
// entry, oldest first. usedBefore filters out redemptions so recent that
// the in-flight ledger write may simply not have landed yet.
func (r *TicketRepository) ListUnledgered(ctx context.Context, usedBefore time.Time, limit int) ([]*model.Ticket, error) {
	const query = `
		SELECT ` + ticketColumns + `
		FROM tickets t
		WHERE t.status = 'used'
		  AND t.used_at < $1
		  AND NOT EXISTS (SELECT 1 FROM ledger_entries l WHERE l.ticket_id = t.id)
		ORDER BY t.used_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, usedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unledgered tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}
