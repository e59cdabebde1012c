package models

import "time"

// LoginAttempt is a single failed login attempt. Rows are never updated;
// they are only removed by age purge or by a successful login for the same pair.
type LoginAttempt struct {
	ID            int64     `db:"id"`
	Identity      string    `db:"identity"`
	CredentialKey string    `db:"credential_key"`
	OccurredAt    time.Time `db:"occurred_at"`
}

// AttemptMatch selects which records an AttemptQuery counts
type AttemptMatch int

const (
	// MatchIdentityOrCredential matches identity == X OR credential_key == Y
	MatchIdentityOrCredential AttemptMatch = iota
	// MatchCredential matches credential_key == Y regardless of identity
	MatchCredential
)

func (m AttemptMatch) String() string {
	switch m {
	case MatchIdentityOrCredential:
		return "identity_or_credential"
	case MatchCredential:
		return "credential"
	default:
		return "unknown"
	}
}

// AttemptQuery describes a window count over the attempt store
type AttemptQuery struct {
	Match         AttemptMatch
	Identity      string
	CredentialKey string
	Since         time.Time
}

// Matches reports whether a record satisfies the query predicate and window
func (q AttemptQuery) Matches(a *LoginAttempt) bool {
	if a.OccurredAt.Before(q.Since) {
		return false
	}
	switch q.Match {
	case MatchCredential:
		return a.CredentialKey == q.CredentialKey
	default:
		return a.Identity == q.Identity || a.CredentialKey == q.CredentialKey
	}
}
