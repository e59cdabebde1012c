//go:build integration

package repositories

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable Postgres container and applies migrations
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("gatekeeper"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.New(pool, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestLoginAttemptRepository_Postgres(t *testing.T) {
	db := setupPostgres(t)

	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		_, err := db.Pool.Exec(context.Background(), `TRUNCATE login_attempts`)
		require.NoError(t, err)
		return NewLoginAttemptRepository(db)
	})
}

func TestSecurityEventRepository_Postgres(t *testing.T) {
	db := setupPostgres(t)
	repo := NewSecurityEventRepository(db)
	ctx := context.Background()

	event := models.NewDistributedBruteForceEvent("bob", 10, 60, "10.0.0.9", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, repo.Create(ctx, event))

	events, err := repo.ListRecent(ctx, models.SecurityEventDistributedBruteForce, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, "bob", events[0].Username)
	assert.Equal(t, 10, events[0].Attempts)
	assert.Equal(t, 60, events[0].WindowMinutes)
	assert.Equal(t, "10.0.0.9", events[0].IPAddress)
}
