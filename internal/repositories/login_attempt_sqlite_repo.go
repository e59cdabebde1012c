package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS login_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	identity       TEXT    NOT NULL,
	credential_key TEXT    NOT NULL,
	occurred_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_identity ON login_attempts (identity, occurred_at);
CREATE INDEX IF NOT EXISTS idx_login_attempts_credential ON login_attempts (credential_key, occurred_at);
CREATE INDEX IF NOT EXISTS idx_login_attempts_occurred_at ON login_attempts (occurred_at);
`

// SQLiteLoginAttemptRepository stores attempts in a local SQLite file for
// single-node deployments. occurred_at is kept as unix nanoseconds.
type SQLiteLoginAttemptRepository struct {
	db *sql.DB
}

// NewSQLiteLoginAttemptRepository opens (or creates) the database at path
func NewSQLiteLoginAttemptRepository(path string) (*SQLiteLoginAttemptRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attempt database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create attempt schema: %w", err)
	}

	return &SQLiteLoginAttemptRepository{db: db}, nil
}

// Close closes the underlying database
func (r *SQLiteLoginAttemptRepository) Close() error {
	return r.db.Close()
}

func sqlitePredicate(q models.AttemptQuery) (string, []any) {
	switch q.Match {
	case models.MatchCredential:
		return "credential_key = ? AND occurred_at >= ?", []any{q.CredentialKey, q.Since.UnixNano()}
	default:
		return "(identity = ? OR credential_key = ?) AND occurred_at >= ?", []any{q.Identity, q.CredentialKey, q.Since.UnixNano()}
	}
}

// InsertAttempt records one failed attempt
func (r *SQLiteLoginAttemptRepository) InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (identity, credential_key, occurred_at) VALUES (?, ?, ?)`,
		attempt.Identity, attempt.CredentialKey, attempt.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		attempt.ID = id
	}
	return nil
}

// CountAttempts returns the number of attempts matching the query window
func (r *SQLiteLoginAttemptRepository) CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error) {
	where, args := sqlitePredicate(q)

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM login_attempts WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count login attempts (%s): %w", q.Match, err)
	}
	return count, nil
}

// LatestAttempt returns the most recent matching occurred_at, or nil when there is none
func (r *SQLiteLoginAttemptRepository) LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error) {
	where, args := sqlitePredicate(q)

	var nanos int64
	err := r.db.QueryRowContext(ctx,
		`SELECT occurred_at FROM login_attempts WHERE `+where+` ORDER BY occurred_at DESC LIMIT 1`,
		args...,
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest login attempt: %w", err)
	}

	t := time.Unix(0, nanos)
	return &t, nil
}

// DeleteAttempts removes attempts for the exact identity AND credential pair
func (r *SQLiteLoginAttemptRepository) DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE identity = ? AND credential_key = ?`,
		identity, credentialKey,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOlderThan removes attempts that occurred before cutoff
func (r *SQLiteLoginAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE occurred_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge login attempts: %w", err)
	}
	return res.RowsAffected()
}

// HealthCheck pings the database file
func (r *SQLiteLoginAttemptRepository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}
