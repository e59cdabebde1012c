package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword is hashed at startup and compared against for unknown users
const dummyPassword = "gatekeeper-dummy-password"

// StaticVerifier checks credentials against a fixed set of bcrypt hashes.
// It stands in for a real account store in front of the login gate.
type StaticVerifier struct {
	users     map[string]string
	dummyHash string
}

// NewStaticVerifier builds a verifier from username -> bcrypt hash pairs
func NewStaticVerifier(users map[string]string) (*StaticVerifier, error) {
	cost := 0
	for username, hash := range users {
		c, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return nil, fmt.Errorf("user %q: invalid bcrypt hash: %w", username, err)
		}
		if c > cost {
			cost = c
		}
	}

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	// Unknown users pay the same bcrypt cost as known ones
	dummyHash, err := pkgauth.HashPasswordWithCost(dummyPassword, cost)
	if err != nil {
		return nil, err
	}

	copied := make(map[string]string, len(users))
	for k, v := range users {
		copied[k] = v
	}

	return &StaticVerifier{users: copied, dummyHash: dummyHash}, nil
}

// LoadUsersFile reads "username:bcrypt-hash" lines. Blank lines and lines
// starting with # are ignored.
func LoadUsersFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer f.Close()

	users := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		username, hash, ok := strings.Cut(line, ":")
		if !ok || username == "" || hash == "" {
			return nil, fmt.Errorf("users file line %d: expected username:hash", lineNo)
		}
		users[username] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	return users, nil
}

// Verify returns models.ErrInvalidCredential for an unknown user or a wrong
// password. The two cases are indistinguishable to the caller.
func (v *StaticVerifier) Verify(ctx context.Context, username, password string) error {
	hash, ok := v.users[username]
	if !ok {
		_ = pkgauth.ComparePassword(v.dummyHash, password)
		return models.ErrInvalidCredential
	}

	if err := pkgauth.ComparePassword(hash, password); err != nil {
		return models.ErrInvalidCredential
	}
	return nil
}
