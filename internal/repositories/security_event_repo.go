package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository persists security events raised by the gate
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecurityEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent

	err := row.Scan(
		&event.ID, &event.EventType, &event.Username, &event.Attempts,
		&event.WindowMinutes, &event.IPAddress, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

// Create inserts a security event
func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (id, event_type, username, attempts, window_minutes, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.EventType, event.Username, event.Attempts,
		event.WindowMinutes, event.IPAddress, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security event: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListRecent returns the most recent events, newest first
func (r *SecurityEventRepository) ListRecent(ctx context.Context, eventType string, limit int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, username, attempts, window_minutes, ip_address, created_at
		FROM security_events
		WHERE event_type = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

func scanSecurityEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		event, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}
