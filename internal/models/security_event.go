package models

import (
	"time"

	"github.com/google/uuid"
)

// Security event types
const (
	SecurityEventDistributedBruteForce = "distributed_brute_force_detected"
)

// SecurityEvent is a notable security observation raised by the login gate
type SecurityEvent struct {
	ID            uuid.UUID `db:"id" json:"id"`
	EventType     string    `db:"event_type" json:"event_type"`
	Username      string    `db:"username" json:"username"`
	Attempts      int       `db:"attempts" json:"attempts"`
	WindowMinutes int       `db:"window_minutes" json:"window_minutes"`
	IPAddress     string    `db:"ip_address" json:"ip_address"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewDistributedBruteForceEvent builds the event raised when a single username
// crosses the username-layer threshold
func NewDistributedBruteForceEvent(username string, attempts, windowMinutes int, ipAddress string, at time.Time) *SecurityEvent {
	return &SecurityEvent{
		ID:            uuid.New(),
		EventType:     SecurityEventDistributedBruteForce,
		Username:      username,
		Attempts:      attempts,
		WindowMinutes: windowMinutes,
		IPAddress:     ipAddress,
		CreatedAt:     at,
	}
}
