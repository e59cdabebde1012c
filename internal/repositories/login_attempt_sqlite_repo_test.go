package repositories

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteLoginAttemptRepository(t *testing.T) {
	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		repo, err := NewSQLiteLoginAttemptRepository(filepath.Join(t.TempDir(), "attempts.db"))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}
