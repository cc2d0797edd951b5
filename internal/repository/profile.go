package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spin-reward-service/internal/model"
)

// ProfileRepository handles owner profile persistence.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `owner_id, display_name, balance, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.OwnerID,
		&p.DisplayName,
		&p.Balance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a profile by owner id.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, ownerID string) (*model.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE owner_id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetOrCreate retrieves a profile by owner id, creating one with a zero
// balance if it doesn't exist. The bool result reports whether a profile
// was created.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, ownerID, displayName string) (*model.Profile, bool, error) {
	profile, err := r.GetByID(ctx, ownerID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, false, err
	}

	const query = `
		INSERT INTO profiles (owner_id, display_name, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (owner_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, ownerID, displayName); err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	// Re-read: the insert may have been a no-op if another request
	// created the profile first.
	profile, err = r.GetByID(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}
