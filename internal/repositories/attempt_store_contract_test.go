package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attemptStore is the behavior every backend must share
type attemptStore interface {
	InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error)
	LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error)
	DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	HealthCheck(ctx context.Context) error
}

func insert(t *testing.T, store attemptStore, identity, credential string, at time.Time) {
	t.Helper()
	require.NoError(t, store.InsertAttempt(context.Background(), &models.LoginAttempt{
		Identity:      identity,
		CredentialKey: credential,
		OccurredAt:    at,
	}))
}

func combined(identity, credential string, since time.Time) models.AttemptQuery {
	return models.AttemptQuery{Match: models.MatchIdentityOrCredential, Identity: identity, CredentialKey: credential, Since: since}
}

func byCredential(credential string, since time.Time) models.AttemptQuery {
	return models.AttemptQuery{Match: models.MatchCredential, CredentialKey: credential, Since: since}
}

// runAttemptStoreContract exercises a fresh, empty store
func runAttemptStoreContract(t *testing.T, newStore func(t *testing.T) attemptStore) {
	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.HealthCheck(ctx))
	})

	t.Run("combined count uses OR semantics", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, "10.0.0.1", "bob", now.Add(-time.Minute))
		insert(t, store, "10.0.0.1", "alice", now.Add(-time.Minute))
		insert(t, store, "10.0.0.2", "bob", now.Add(-time.Minute))
		insert(t, store, "10.0.0.3", "carol", now.Add(-time.Minute))

		count, err := store.CountAttempts(ctx, combined("10.0.0.1", "bob", now.Add(-10*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, 3, count, "same IP any user plus same user any IP, each record once")

		count, err = store.CountAttempts(ctx, byCredential("bob", now.Add(-10*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("window excludes older records", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, "10.0.0.1", "bob", now.Add(-30*time.Minute))
		insert(t, store, "10.0.0.1", "bob", now.Add(-5*time.Minute))

		count, err := store.CountAttempts(ctx, combined("10.0.0.1", "bob", now.Add(-10*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = store.CountAttempts(ctx, byCredential("bob", now.Add(-60*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("latest attempt", func(t *testing.T) {
		store := newStore(t)

		latest, err := store.LatestAttempt(ctx, combined("10.0.0.1", "bob", now.Add(-time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, latest)

		insert(t, store, "10.0.0.1", "alice", now.Add(-3*time.Minute))
		insert(t, store, "10.0.0.9", "bob", now.Add(-2*time.Minute))
		insert(t, store, "10.0.0.9", "carol", now.Add(-time.Minute))

		latest, err = store.LatestAttempt(ctx, combined("10.0.0.1", "bob", now.Add(-time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, latest.Equal(now.Add(-2*time.Minute)), "got %v", latest)

		latest, err = store.LatestAttempt(ctx, byCredential("alice", now.Add(-time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.True(t, latest.Equal(now.Add(-3*time.Minute)), "got %v", latest)
	})

	t.Run("delete removes only the exact pair", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, "10.0.0.1", "bob", now.Add(-time.Minute))
		insert(t, store, "10.0.0.1", "bob", now.Add(-time.Minute))
		insert(t, store, "10.0.0.1", "alice", now.Add(-time.Minute))
		insert(t, store, "10.0.0.2", "bob", now.Add(-time.Minute))

		deleted, err := store.DeleteAttempts(ctx, "10.0.0.1", "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		count, err := store.CountAttempts(ctx, combined("10.0.0.1", "bob", now.Add(-time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, 2, count, "(10.0.0.1, alice) and (10.0.0.2, bob) remain")
	})

	t.Run("purge removes records older than cutoff", func(t *testing.T) {
		store := newStore(t)
		insert(t, store, "10.0.0.1", "bob", now.Add(-25*time.Hour))
		insert(t, store, "10.0.0.1", "bob", now.Add(-23*time.Hour))

		purged, err := store.PurgeOlderThan(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		count, err := store.CountAttempts(ctx, byCredential("bob", now.Add(-48*time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
