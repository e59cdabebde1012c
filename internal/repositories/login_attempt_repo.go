package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository stores failed login attempts in Postgres
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// attemptPredicate renders the WHERE clause for a query; $1 is always the window start
func attemptPredicate(q models.AttemptQuery) (string, []any) {
	switch q.Match {
	case models.MatchCredential:
		return "credential_key = $2 AND occurred_at >= $1", []any{q.Since, q.CredentialKey}
	default:
		return "(identity = $2 OR credential_key = $3) AND occurred_at >= $1", []any{q.Since, q.Identity, q.CredentialKey}
	}
}

// InsertAttempt records one failed attempt
func (r *LoginAttemptRepository) InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identity, credential_key, occurred_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.Identity,
		attempt.CredentialKey,
		attempt.OccurredAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", database.MapPostgresError(err))
	}

	return nil
}

// CountAttempts returns the number of attempts matching the query window
func (r *LoginAttemptRepository) CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error) {
	where, args := attemptPredicate(q)
	query := `SELECT COUNT(*) FROM login_attempts WHERE ` + where

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count login attempts (%s): %w", q.Match, database.MapPostgresError(err))
	}
	return count, nil
}

// LatestAttempt returns the most recent matching occurred_at, or nil when there is none
func (r *LoginAttemptRepository) LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error) {
	where, args := attemptPredicate(q)
	query := `
		SELECT occurred_at FROM login_attempts
		WHERE ` + where + `
		ORDER BY occurred_at DESC
		LIMIT 1
	`

	var occurredAt time.Time
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&occurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest login attempt: %w", database.MapPostgresError(err))
	}

	return &occurredAt, nil
}

// DeleteAttempts removes attempts for the exact identity AND credential pair
func (r *LoginAttemptRepository) DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error) {
	query := `DELETE FROM login_attempts WHERE identity = $1 AND credential_key = $2`

	tag, err := r.db.Pool.Exec(ctx, query, identity, credentialKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}

// PurgeOlderThan removes attempts that occurred before cutoff
func (r *LoginAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE occurred_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge login attempts: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}

// HealthCheck reports whether the backing database is reachable
func (r *LoginAttemptRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
