package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// ErrMockStore is returned by MockAttemptRepository when a failure is injected
var ErrMockStore = errors.New("mock store failure")

// MockAttemptRepository is an in-memory AttemptRepository for testing.
// The *Err fields inject failures into individual operations.
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt
	nextID   int64

	InsertErr error
	CountErr  error
	LatestErr error
	DeleteErr error
	PurgeErr  error
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{}
}

func (m *MockAttemptRepository) InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := *attempt
	stored.ID = m.nextID
	attempt.ID = stored.ID
	m.attempts = append(m.attempts, &stored)
	return nil
}

func (m *MockAttemptRepository) CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.attempts {
		if q.Matches(a) {
			count++
		}
	}
	return count, nil
}

func (m *MockAttemptRepository) LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error) {
	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *time.Time
	for _, a := range m.attempts {
		if q.Matches(a) && (latest == nil || a.OccurredAt.After(*latest)) {
			t := a.OccurredAt
			latest = &t
		}
	}
	return latest, nil
}

func (m *MockAttemptRepository) DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[:0]
	var deleted int64
	for _, a := range m.attempts {
		if a.Identity == identity && a.CredentialKey == credentialKey {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return deleted, nil
}

func (m *MockAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeErr != nil {
		return 0, m.PurgeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[:0]
	var purged int64
	for _, a := range m.attempts {
		if a.OccurredAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return purged, nil
}

// Seed inserts a record directly, bypassing injected errors
func (m *MockAttemptRepository) Seed(identity, credentialKey string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.attempts = append(m.attempts, &models.LoginAttempt{
		ID:            m.nextID,
		Identity:      identity,
		CredentialKey: credentialKey,
		OccurredAt:    at,
	})
}

// Len returns the number of stored records
func (m *MockAttemptRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// MockSecurityEventEmitter records emitted events
type MockSecurityEventEmitter struct {
	mu     sync.Mutex
	Events []*models.SecurityEvent
}

func (m *MockSecurityEventEmitter) Emit(ctx context.Context, event *models.SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// MockSecurityEventRepository implements SecurityEventRepository for testing
type MockSecurityEventRepository struct {
	CreateFunc func(ctx context.Context, event *models.SecurityEvent) error
	Created    []*models.SecurityEvent
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.Created = append(m.Created, event)
	return nil
}
